// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// writeDataSet writes the elements of ds in insertion (wire) order. The
// character repertoire switches when a Specific Character Set element is
// written, mirroring the decode side.
func writeDataSet(dw *dcmWriter, syntax TransferSyntax, ds *DataSet, repertoire *characterRepertoire) error {
	for _, element := range ds.Elements() {
		if err := writeDataElement(dw, syntax, element, repertoire); err != nil {
			return fmt.Errorf("writing data element: %w", err)
		}
		if element.Tag == SpecificCharacterSetTag {
			next, err := repertoireFromElement(element)
			if err != nil {
				return elementError(element.Tag, err)
			}
			if next != nil {
				repertoire = next
			}
		}
	}
	return nil
}

func repertoireFromElement(element *DataElement) (*characterRepertoire, error) {
	terms, ok := element.ValueField.([]string)
	if !ok {
		// an UnparsedValue round-trips verbatim and keeps the previous
		// repertoire, same as on decode
		return nil, nil
	}
	return newCharacterRepertoire(terms)
}

// writeDataElement serializes one element. The value payload is produced
// first so the length field always reflects the encoded bytes, including any
// character set translation.
func writeDataElement(dw *dcmWriter, syntax TransferSyntax, element *DataElement, repertoire *characterRepertoire) error {
	if _, ok := element.ValueField.(PendingValue); ok {
		return elementError(element.Tag, fmt.Errorf("value field awaiting VR resolution: %w", ErrAmbiguousVR))
	}

	vr := element.VR
	if vr == nil {
		var err error
		if vr, err = defaultDictionary.LookupVR(element.Tag); err != nil {
			return elementError(element.Tag, err)
		}
	}

	valueField := element.ValueField
	if seqIter, ok := valueField.(SequenceIterator); ok {
		seq, err := CollectSequence(seqIter)
		if err != nil {
			return elementError(element.Tag, err)
		}
		valueField = seq
	}
	if bulkIter, ok := valueField.(BulkDataIterator); ok {
		fragments, err := CollectFragments(bulkIter)
		if err != nil {
			return elementError(element.Tag, err)
		}
		valueField = fragments
	}

	if seq, ok := valueField.(*Sequence); ok {
		return writeSequenceElement(dw, syntax, element.Tag, vr, seq, element.ValueLength, repertoire)
	}
	if fragments, ok := valueField.([][]byte); ok && element.ValueLength == UndefinedLength {
		return writeEncapsulatedElement(dw, syntax, element.Tag, vr, fragments)
	}

	payload, err := serializeValue(syntax, vr, valueField, repertoire)
	if err != nil {
		return elementError(element.Tag, err)
	}
	if len(payload)%2 != 0 {
		payload = append(payload, vr.paddingByte())
	}

	if err := writeElementHeader(dw, syntax, element.Tag, vr, uint32(len(payload))); err != nil {
		return elementError(element.Tag, err)
	}
	if err := dw.Bytes(payload); err != nil {
		return elementError(element.Tag, fmt.Errorf("writing value field: %v", err))
	}
	return nil
}

func writeElementHeader(dw *dcmWriter, syntax TransferSyntax, tag DataElementTag, vr *VR, length uint32) error {
	if err := dw.Tag(syntax.ByteOrder(), tag); err != nil {
		return fmt.Errorf("writing tag: %v", err)
	}
	if err := syntax.writeVR(dw, vr); err != nil {
		return fmt.Errorf("writing VR: %v", err)
	}
	if err := syntax.writeValueLength(dw, vr, length); err != nil {
		return fmt.Errorf("writing length: %v", err)
	}
	return nil
}

// writeSequenceElement writes a sequence of items. ValueLength selects the
// framing: UndefinedLength requests delimiters, anything else requests an
// explicit length, which is recomputed by serializing the items to a scratch
// buffer first.
func writeSequenceElement(dw *dcmWriter, syntax TransferSyntax, tag DataElementTag, vr *VR, seq *Sequence, valueLength uint32, repertoire *characterRepertoire) error {
	if valueLength == UndefinedLength {
		if err := writeElementHeader(dw, syntax, tag, vr, UndefinedLength); err != nil {
			return elementError(tag, err)
		}
		for _, item := range seq.Items {
			if err := writeItem(dw, syntax, item, repertoire); err != nil {
				return elementError(tag, err)
			}
		}
		if err := dw.Delimiter(syntax.ByteOrder(), SequenceDelimitationItemTag); err != nil {
			return elementError(tag, err)
		}
		return nil
	}

	var scratch bytes.Buffer
	sdw := &dcmWriter{&scratch}
	for _, item := range seq.Items {
		if err := writeItem(sdw, syntax, item, repertoire); err != nil {
			return elementError(tag, err)
		}
	}
	if err := writeElementHeader(dw, syntax, tag, vr, uint32(scratch.Len())); err != nil {
		return elementError(tag, err)
	}
	return dw.Bytes(scratch.Bytes())
}

// writeItem writes one sequence item. Items with Length == UndefinedLength
// are framed with an item delimitation item; all others get an explicit
// length computed from the serialized item body.
func writeItem(dw *dcmWriter, syntax TransferSyntax, item *DataSet, repertoire *characterRepertoire) error {
	if item.Length == UndefinedLength {
		if err := dw.Tag(syntax.ByteOrder(), ItemTag); err != nil {
			return fmt.Errorf("writing item tag: %v", err)
		}
		if err := dw.UInt32(syntax.ByteOrder(), UndefinedLength); err != nil {
			return fmt.Errorf("writing item length: %v", err)
		}
		if err := writeDataSet(dw, syntax, item, repertoire); err != nil {
			return fmt.Errorf("writing sequence item: %w", err)
		}
		return dw.Delimiter(syntax.ByteOrder(), ItemDelimitationItemTag)
	}

	var scratch bytes.Buffer
	if err := writeDataSet(&dcmWriter{&scratch}, syntax, item, repertoire); err != nil {
		return fmt.Errorf("writing sequence item: %w", err)
	}
	if err := dw.Tag(syntax.ByteOrder(), ItemTag); err != nil {
		return fmt.Errorf("writing item tag: %v", err)
	}
	if err := dw.UInt32(syntax.ByteOrder(), uint32(scratch.Len())); err != nil {
		return fmt.Errorf("writing item length: %v", err)
	}
	return dw.Bytes(scratch.Bytes())
}

// writeEncapsulatedElement writes fragmented pixel data: an undefined length
// value field holding the basic offset table item, one item per fragment and
// a sequence delimitation item.
func writeEncapsulatedElement(dw *dcmWriter, syntax TransferSyntax, tag DataElementTag, vr *VR, fragments [][]byte) error {
	if err := writeElementHeader(dw, syntax, tag, vr, UndefinedLength); err != nil {
		return elementError(tag, err)
	}
	for _, fragment := range fragments {
		if len(fragment)%2 != 0 {
			fragment = append(fragment, 0x00)
		}
		if err := dw.Tag(syntax.ByteOrder(), ItemTag); err != nil {
			return elementError(tag, fmt.Errorf("writing fragment item tag: %v", err))
		}
		if err := dw.UInt32(syntax.ByteOrder(), uint32(len(fragment))); err != nil {
			return elementError(tag, fmt.Errorf("writing fragment item length: %v", err))
		}
		if err := dw.Bytes(fragment); err != nil {
			return elementError(tag, fmt.Errorf("writing fragment: %v", err))
		}
	}
	return dw.Delimiter(syntax.ByteOrder(), SequenceDelimitationItemTag)
}

// serializeValue encodes a value field into its wire bytes, without padding.
func serializeValue(syntax TransferSyntax, vr *VR, valueField interface{}, repertoire *characterRepertoire) ([]byte, error) {
	if uv, ok := valueField.(UnparsedValue); ok {
		return uv.Raw, nil
	}
	if _, ok := valueField.([]BulkDataReference); ok {
		return nil, fmt.Errorf("bulk data references cannot be re-serialized, the referenced bytes are not retained")
	}

	switch vr.kind {
	case textVR:
		return serializeText(vr, valueField, repertoire)
	case uniqueIdentifierVR:
		return serializeText(vr, valueField, repertoire)
	case numberBinaryVR:
		return serializeNumberBinary(syntax.ByteOrder(), valueField)
	case bulkDataVR:
		switch v := valueField.(type) {
		case [][]byte:
			return bytes.Join(v, nil), nil
		case []string:
			return serializeText(vr, valueField, repertoire)
		default:
			return serializeNumberBinary(syntax.ByteOrder(), valueField)
		}
	case tagVR:
		return serializeTags(syntax.ByteOrder(), valueField)
	default:
		return nil, fmt.Errorf("VR %s cannot be serialized as a flat value field", vr.Name)
	}
}

func serializeText(vr *VR, valueField interface{}, repertoire *characterRepertoire) ([]byte, error) {
	strs, ok := valueField.([]string)
	if !ok {
		return nil, fmt.Errorf("expected type []string, got %T", valueField)
	}
	if vr.usesCharacterRepertoire() {
		return repertoire.EncodeValues(strs, vr)
	}
	return []byte(strings.Join(strs, multiValueDelimiter)), nil
}

func serializeNumberBinary(order binary.ByteOrder, valueField interface{}) ([]byte, error) {
	switch valueField.(type) {
	case []int16, []uint16, []int32, []uint32, []float32, []float64:
		var buf bytes.Buffer
		if err := binary.Write(&buf, order, valueField); err != nil {
			return nil, fmt.Errorf("writing binary numbers: %v", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported binary number type: %T", valueField)
	}
}

func serializeTags(order binary.ByteOrder, valueField interface{}) ([]byte, error) {
	tags, ok := valueField.([]uint32)
	if !ok {
		return nil, fmt.Errorf("expected type []uint32 for tag VR, got %T", valueField)
	}
	var buf bytes.Buffer
	dw := &dcmWriter{&buf}
	for _, t := range tags {
		if err := dw.Tag(order, DataElementTag(t)); err != nil {
			return nil, fmt.Errorf("writing tag value: %v", err)
		}
	}
	return buf.Bytes(), nil
}

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
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// readDataElement reads one tag + VR + length + value unit from dr. It
// returns io.EOF when the input is cleanly exhausted or when the item
// delimitation item terminating an undefined-length item is read.
func readDataElement(dr *dcmReader, md *dicomMetaData, cfg *parseConfig, depth int) (*DataElement, error) {
	tag, err := dr.Tag(md.syntax.ByteOrder())
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, truncatedIf(err, "getting tag")
	}

	if tag == ItemDelimitationItemTag {
		// handles the case when we are parsing a nested data set within a sequence with undefined
		// length. This code should never run for the top level data set
		length, err := dr.UInt32(md.syntax.ByteOrder())
		if err != nil {
			return nil, truncatedIf(err, "reading 32 bit length of item delimitation")
		}
		if length != 0 {
			return nil, fmt.Errorf("wrong length for item delimiter: got %v, want 0: %w", length, ErrMalformedValue)
		}
		return nil, io.EOF
	}

	vr, err := md.syntax.readVR(dr, tag, cfg)
	if err != nil {
		return nil, elementError(tag, err)
	}

	length, err := md.syntax.readValueLength(dr, vr)
	if err != nil {
		return nil, elementError(tag, err)
	}

	// Ambiguous tags under implicit VR cannot be disambiguated until the
	// sibling element is available: retain the raw bytes and both candidates
	// for the resolution post-pass.
	if rule, ok := ambiguousVRRules[tag]; ok && !md.syntax.ExplicitVR() && length != UndefinedLength {
		raw, err := dr.Bytes(int64(length))
		if err != nil {
			return nil, elementError(tag, err)
		}
		pending := PendingValue{Raw: raw, Candidates: rule.candidates, order: md.syntax.ByteOrder()}
		return &DataElement{Tag: tag, VR: rule.candidates[0], ValueField: pending, ValueLength: length}, nil
	}

	value, err := readValue(tag, dr, vr, length, md, cfg, depth)
	if err != nil {
		return nil, elementError(tag, err)
	}

	checkMultiplicity(tag, value, cfg)

	return &DataElement{Tag: tag, VR: vr, ValueField: value, ValueLength: length}, nil
}

func readValue(tag DataElementTag, dr *dcmReader, vr *VR, length uint32, md *dicomMetaData, cfg *parseConfig, depth int) (interface{}, error) {
	switch vr.kind {
	case textVR:
		return readText(dr, length, vr, md, cfg, trimSpace)
	case numberBinaryVR:
		return readNumberBinary(dr, length, vr, md, cfg)
	case bulkDataVR:
		if vr == UTVR || vr == UCVR || vr == URVR {
			return readText(dr, length, vr, md, cfg, trimTrailingSpace)
		}
		return readBulkData(dr, tag, length)
	case uniqueIdentifierVR:
		return readText(dr, length, vr, md, cfg, func(s string) string {
			return strings.TrimFunc(s, func(r rune) bool { return r == 0x00 || r == ' ' })
		})
	case sequenceVR:
		return readSequence(dr, length, md, cfg, depth)
	case tagVR:
		return readTag(dr, md.syntax, length)
	default:
		return nil, fmt.Errorf("unknown vr type found: %v", vr.kind)
	}
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}

// trimTrailingSpace preserves leading whitespace, which is significant in
// the unlimited text VRs.
func trimTrailingSpace(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func readTag(dr *dcmReader, syntax TransferSyntax, length uint32) ([]uint32, error) {
	if err := ATVR.checkFixedWidth(length); err != nil {
		return nil, err
	}
	ret := make([]uint32, length/4) // 4 bytes per tag

	for i := range ret {
		t, err := dr.Tag(syntax.ByteOrder())
		if err != nil {
			return nil, truncatedIf(err, "reading tag value")
		}
		ret[i] = uint32(t)
	}
	return ret, nil
}

func readText(dr *dcmReader, length uint32, vr *VR, md *dicomMetaData, cfg *parseConfig, trim func(string) string) (interface{}, error) {
	if length <= 0 {
		return []string{}, nil
	}

	raw, err := dr.Bytes(int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading text field value: %w", err)
	}

	var strs []string
	if vr.usesCharacterRepertoire() {
		strs, err = md.repertoire.DecodeValues(raw, vr)
		if err != nil {
			if cfg.strict {
				return nil, err
			}
			logrus.WithField("vr", vr.Name).WithError(err).Warn("preserving undecodable text as unparsed value")
			return UnparsedValue{Raw: raw, Err: err}, nil
		}
	} else if vr.singleValued() {
		strs = []string{string(raw)}
	} else {
		// deal with value multiplicity
		strs = strings.Split(string(raw), multiValueDelimiter)
	}

	if vr == UTVR || vr == STVR || vr == LTVR {
		trim = trimTrailingSpace
	}
	for i, s := range strs {
		strs[i] = trim(s)
	}
	return strs, nil
}

func readNumberBinary(dr *dcmReader, length uint32, vr *VR, md *dicomMetaData, cfg *parseConfig) (interface{}, error) {
	raw, err := dr.Bytes(int64(length))
	if err != nil {
		return nil, err
	}

	data, err := decodeNumberBinary(vr, raw, md.syntax.ByteOrder())
	if err != nil {
		if cfg.strict || !errors.Is(err, ErrMalformedValue) {
			return nil, err
		}
		logrus.WithField("vr", vr.Name).WithError(err).Warn("preserving malformed value as unparsed value")
		return UnparsedValue{Raw: raw, Err: err}, nil
	}
	return data, nil
}

func readBulkData(dr *dcmReader, tag DataElementTag, length uint32) (BulkDataIterator, error) {
	if length == UndefinedLength {
		if tag == PixelDataTag {
			// Specified in http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
			// (7FE0,0010) and undefined length means pixel data in encapsulated (compressed) format
			return newEncapsulatedFormatIterator(dr), nil
		}

		return nil, fmt.Errorf("undefined length in non-pixel bulk data: %w", ErrMalformedValue)
	}

	// for native (uncompressed) formats, return regular bulk data stream
	limitedReader := limitCountReader(dr.cr, int64(length))
	return newOneShotIterator(limitedReader), nil
}

func readSequence(dr *dcmReader, length uint32, md *dicomMetaData, cfg *parseConfig, depth int) (SequenceIterator, error) {
	return newSequenceIterator(dr, length, *md, cfg, depth+1)
}

// checkMultiplicity logs values whose count falls outside the dictionary's
// multiplicity range. This is diagnostic only: multiplicity is not a wire
// structure concern and never fails the parse.
func checkMultiplicity(tag DataElementTag, value interface{}, cfg *parseConfig) {
	vm, err := cfg.dictionary.LookupMultiplicity(tag)
	if err != nil {
		return
	}

	n := -1
	switch v := value.(type) {
	case []string:
		n = len(v)
	case []int16:
		n = len(v)
	case []uint16:
		n = len(v)
	case []int32:
		n = len(v)
	case []uint32:
		n = len(v)
	case []float32:
		n = len(v)
	case []float64:
		n = len(v)
	}
	if n > 0 && !vm.Contains(n) {
		logrus.WithFields(logrus.Fields{"tag": tag.String(), "count": n}).
			Debug("value multiplicity outside dictionary range")
	}
}

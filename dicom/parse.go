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
	"compress/flate"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

// Parse decodes a DICOM file (preamble, DICM signature, meta header and data
// set) into a DataSet. Elements appear in the DataSet in wire order. Bulk
// data is buffered in memory unless a ParseOption such as ReferenceBulkData
// says otherwise.
func Parse(r io.Reader, opts ...ParseOption) (*DataSet, error) {
	iter, err := NewDataElementIterator(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %w", err)
	}
	defer iter.Close()

	return CollectDataElements(iter, opts...)
}

// ReadDataSet decodes a raw data set that carries no preamble, DICM signature
// or meta header, under the given transfer syntax.
func ReadDataSet(r io.Reader, syntax TransferSyntax, opts ...ParseOption) (*DataSet, error) {
	src := r
	if syntax.Deflated() {
		src = flate.NewReader(r)
	}
	iter := newDataElementIterator(
		newDcmReader(src), dicomMetaData{syntax, defaultRepertoire}, newParseConfig(opts...), 0, UndefinedLength)
	defer iter.Close()

	return CollectDataElements(iter, opts...)
}

// CollectDataElements buffers the remaining elements of iter into a DataSet,
// applying any transform options in post-order and resolving ambiguous VRs
// once the whole data set is available.
func CollectDataElements(iter DataElementIterator, opts ...ParseOption) (*DataSet, error) {
	cfg := newParseConfig(opts...)

	ds, err := collectDataSet(iter, cfg)
	if err != nil {
		return nil, err
	}
	if err := resolveAmbiguousVRs(ds, nil, cfg.strict); err != nil {
		return nil, err
	}
	return ds, nil
}

// CollectSequence buffers the remaining items of a SequenceIterator into a
// Sequence.
func CollectSequence(iter SequenceIterator, opts ...ParseOption) (*Sequence, error) {
	cfg := newParseConfig(opts...)
	seq := &Sequence{}
	for itemIter, err := iter.Next(); err != io.EOF; itemIter, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("reading sequence item: %w", err)
		}
		item, err := collectDataSet(itemIter, cfg)
		if err != nil {
			return nil, err
		}
		seq.append(item)
	}
	return seq, nil
}

// CollectFragments buffers the remaining fragments of a BulkDataIterator into
// memory. Native bulk data yields a single fragment; encapsulated pixel data
// yields the basic offset table followed by one fragment per item.
func CollectFragments(iter BulkDataIterator) ([][]byte, error) {
	fragments := [][]byte{}
	for r, err := iter.Next(); err != io.EOF; r, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("reading fragment: %w", err)
		}
		fragment, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("buffering fragment: %w", err)
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

// CollectFragmentReferences drains the remaining fragments of a
// BulkDataIterator, recording the byte region of each fragment within the
// input stream instead of buffering its bytes.
func CollectFragmentReferences(iter BulkDataIterator) ([]BulkDataReference, error) {
	refs := []BulkDataReference{}
	for r, err := iter.Next(); err != io.EOF; r, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("reading fragment: %w", err)
		}
		offset := r.Offset
		length, err := io.Copy(ioutil.Discard, r)
		if err != nil {
			return nil, fmt.Errorf("measuring fragment: %w", err)
		}
		refs = append(refs, BulkDataReference{ByteRegion{offset, length}})
	}
	return refs, nil
}

func collectDataSet(iter DataElementIterator, cfg *parseConfig) (*DataSet, error) {
	ds := NewDataSet()
	for elem, err := iter.NextElement(); err != io.EOF; elem, err = iter.NextElement() {
		if err != nil {
			return nil, err
		}
		elem, err = processElement(elem, iter.syntax(), cfg)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			continue
		}
		if err := ds.Add(elem); err != nil {
			if cfg.strict {
				return nil, err
			}
			logrus.WithField("tag", elem.Tag.String()).Warn("duplicate tag in data set, keeping last value")
			ds.Put(elem)
		}
	}
	ds.Length = iter.length()
	return ds, nil
}

// processElement buffers iterator value fields and applies transforms.
// Sequence items are processed first so that transforms run on nested
// elements in post-order.
func processElement(element *DataElement, syntax TransferSyntax, cfg *parseConfig) (*DataElement, error) {
	if seqIter, ok := element.ValueField.(SequenceIterator); ok {
		seq := &Sequence{}
		for itemIter, err := seqIter.Next(); err != io.EOF; itemIter, err = seqIter.Next() {
			if err != nil {
				return nil, elementError(element.Tag, err)
			}
			item, err := collectDataSet(itemIter, cfg)
			if err != nil {
				return nil, elementError(element.Tag, err)
			}
			seq.append(item)
		}
		element.ValueField = seq
	}

	element, err := applyTransforms(element, cfg)
	if err != nil || element == nil {
		return element, err
	}

	if bulkIter, ok := element.ValueField.(BulkDataIterator); ok {
		buffered, err := bufferBulkData(bulkIter, element.VR, syntax, cfg)
		if err != nil {
			return nil, elementError(element.Tag, err)
		}
		element.ValueField = buffered
	}

	return element, nil
}

func applyTransforms(element *DataElement, cfg *parseConfig) (*DataElement, error) {
	var err error
	for _, transform := range cfg.transforms {
		element, err = transform(element)
		if err != nil {
			return nil, fmt.Errorf("applying transform: %w", err)
		}
		if element == nil {
			return nil, nil
		}
	}
	return element, nil
}

// bufferBulkData realizes a bulk data iterator in memory. The other-word,
// other-byte and unknown VRs stay as raw fragments. The other-long, float and
// double VRs decode to typed slices since their element width is defined by
// the VR.
func bufferBulkData(iter BulkDataIterator, vr *VR, syntax TransferSyntax, cfg *parseConfig) (interface{}, error) {
	fragments, err := CollectFragments(iter)
	if err != nil {
		return nil, err
	}

	var numericAlias *VR
	switch vr {
	case OLVR:
		numericAlias = ULVR
	case OFVR:
		numericAlias = FLVR
	case ODVR:
		numericAlias = FDVR
	default:
		return fragments, nil
	}

	data := bytes.Join(fragments, nil)
	value, err := decodeNumberBinary(numericAlias, data, syntax.ByteOrder())
	if err != nil {
		if cfg.strict {
			return nil, err
		}
		logrus.WithField("vr", vr.Name).WithError(err).Warn("preserving malformed value as unparsed value")
		return UnparsedValue{Raw: data, Err: err}, nil
	}
	return value, nil
}

// ResolveAmbiguousVRs resolves any PendingValue value fields in the data set
// using the sibling elements now available. When the deciding sibling is
// absent the first (unsigned) candidate applies and the element is marked
// AmbiguityUnresolved.
func ResolveAmbiguousVRs(ds *DataSet) error {
	return resolveAmbiguousVRs(ds, nil, false)
}

func resolveAmbiguousVRs(ds, parent *DataSet, strict bool) error {
	for _, element := range ds.Elements() {
		if seq, ok := element.ValueField.(*Sequence); ok {
			for _, item := range seq.Items {
				if err := resolveAmbiguousVRs(item, ds, strict); err != nil {
					return err
				}
			}
			continue
		}

		pending, ok := element.ValueField.(PendingValue)
		if !ok {
			continue
		}

		rule, haveRule := ambiguousVRRules[element.Tag]
		vr := pending.Candidates[0]
		resolved := false
		if haveRule {
			if sibling := lookupSibling(ds, parent, rule.siblingTag); sibling != nil {
				if v, err := sibling.IntValue(); err == nil {
					if rule.selectAlt(v) {
						vr = pending.Candidates[1]
					}
					resolved = true
				}
			}
		}
		if !resolved {
			if strict {
				return elementError(element.Tag, fmt.Errorf("no %v element to disambiguate: %w",
					rule.siblingTag, ErrAmbiguousVR))
			}
			logrus.WithField("tag", element.Tag.String()).
				Warn("ambiguous VR left unresolved, defaulting to unsigned")
		}

		value, err := decodeNumberBinary(vr, pending.Raw, pending.order)
		if err != nil {
			return elementError(element.Tag, err)
		}
		element.VR = vr
		element.ValueField = value
		element.AmbiguityUnresolved = !resolved
	}
	return nil
}

// lookupSibling finds the disambiguating element in the same data set, or in
// the enclosing data set when the ambiguous element sits inside a sequence
// item.
func lookupSibling(ds, parent *DataSet, tag DataElementTag) *DataElement {
	if e, ok := ds.Get(tag); ok {
		return e
	}
	if parent != nil {
		if e, ok := parent.Get(tag); ok {
			return e
		}
	}
	return nil
}

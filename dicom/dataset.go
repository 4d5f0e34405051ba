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
	"fmt"
	"sort"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// DataElement models a DICOM Data Element as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
type DataElement struct {
	Tag DataElementTag

	// Value Representation
	VR *VR

	// ValueField represents the field within a Data Element that contains its
	// value(s). Can be any of the following types:
	// []string,
	// [][]byte,
	// []int16,
	// []uint16,
	// []int32,
	// []uint32,
	// []float32,
	// []float64,
	// []BulkDataReference,
	// BulkDataIterator,
	// *Sequence, SequenceIterator,
	// UnparsedValue (lenient decode placeholder),
	// PendingValue (ambiguous VR awaiting resolution)
	ValueField interface{}

	// ValueLength is equal to the length of the ValueField in bytes.
	// Can be equal to 0xFFFFFFFF to represent an undefined length:
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
	ValueLength uint32

	// AmbiguityUnresolved is set when the element's VR was ambiguous and the
	// sibling element needed to disambiguate it was absent, so the more
	// permissive candidate was applied.
	AmbiguityUnresolved bool
}

// StringValue returns the element's value as a string. An error is returned
// if the value is not a single string.
func (e *DataElement) StringValue() (string, error) {
	v, ok := e.ValueField.([]string)
	if !ok {
		return "", fmt.Errorf("expected []string value in %v, got %T", e.Tag, e.ValueField)
	}
	if len(v) != 1 {
		return "", fmt.Errorf("expected exactly 1 value in %v, got %d", e.Tag, len(v))
	}
	return v[0], nil
}

// IntValue returns the element's first value widened to int64. An error is
// returned if the value field is not an integral type.
func (e *DataElement) IntValue() (int64, error) {
	switch v := e.ValueField.(type) {
	case []int16:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []uint16:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []int32:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []uint32:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	default:
		return 0, fmt.Errorf("expected integral value in %v, got %T", e.Tag, e.ValueField)
	}
	return 0, fmt.Errorf("no values in %v", e.Tag)
}

// DataSet models a DICOM Data Set as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
//
// A DataSet is an ordered mapping of DataElementTag to *DataElement:
// insertion order is the wire order and is preserved on re-serialization. A
// tag is unique within one DataSet.
type DataSet struct {
	elements *orderedmap.OrderedMap[DataElementTag, *DataElement]

	// Length is the encoded byte length of this data set when it appears as
	// an explicit-length sequence item, or UndefinedLength. A zero Length on
	// write requests explicit length re-calculation.
	Length uint32
}

// NewDataSet returns an empty DataSet.
func NewDataSet() *DataSet {
	return &DataSet{elements: orderedmap.NewOrderedMap[DataElementTag, *DataElement]()}
}

// NewDataSetFromElements returns a DataSet containing the given elements in
// order. An error is returned on duplicate tags.
func NewDataSetFromElements(elements ...*DataElement) (*DataSet, error) {
	ds := NewDataSet()
	for _, e := range elements {
		if err := ds.Add(e); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Add appends the element, failing if its tag is already present at this
// level.
func (ds *DataSet) Add(element *DataElement) error {
	if _, ok := ds.elements.Get(element.Tag); ok {
		return fmt.Errorf("duplicate tag %v in data set", element.Tag)
	}
	ds.elements.Set(element.Tag, element)
	return nil
}

// Put inserts the element, replacing any existing element with the same tag
// while keeping the original insertion position.
func (ds *DataSet) Put(element *DataElement) {
	ds.elements.Set(element.Tag, element)
}

// Get returns the element with the given tag.
func (ds *DataSet) Get(tag DataElementTag) (*DataElement, bool) {
	return ds.elements.Get(tag)
}

// Len returns the number of elements in the data set.
func (ds *DataSet) Len() int {
	return ds.elements.Len()
}

// Elements returns the elements in insertion (wire) order.
func (ds *DataSet) Elements() []*DataElement {
	ret := make([]*DataElement, 0, ds.elements.Len())
	for el := ds.elements.Front(); el != nil; el = el.Next() {
		ret = append(ret, el.Value)
	}
	return ret
}

// Tags returns the tags in insertion (wire) order.
func (ds *DataSet) Tags() []DataElementTag {
	ret := make([]DataElementTag, 0, ds.elements.Len())
	for el := ds.elements.Front(); el != nil; el = el.Next() {
		ret = append(ret, el.Key)
	}
	return ret
}

// SortedTags returns the tags in ascending numeric (group, element) order.
func (ds *DataSet) SortedTags() []DataElementTag {
	tags := ds.Tags()
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// MetaElements returns a DataSet holding only the File Meta elements.
func (ds *DataSet) MetaElements() *DataSet {
	meta := NewDataSet()
	for el := ds.elements.Front(); el != nil; el = el.Next() {
		if el.Key.IsMetaElement() {
			meta.Put(el.Value)
		}
	}
	return meta
}

func (ds *DataSet) isMetaHeader() bool {
	for el := ds.elements.Front(); el != nil; el = el.Next() {
		if !el.Key.IsMetaElement() {
			return false
		}
	}
	return true
}

// transferSyntax returns the TransferSyntax declared by the (0002,0010)
// element.
func (ds *DataSet) transferSyntax() (TransferSyntax, error) {
	element, ok := ds.Get(TransferSyntaxUIDTag)
	if !ok {
		return TransferSyntax{}, fmt.Errorf("transfer syntax element is missing from data set")
	}
	uid, err := element.StringValue()
	if err != nil {
		return TransferSyntax{}, fmt.Errorf("transfer syntax element cannot be converted to string: %v", err)
	}
	return LookupTransferSyntax(uid), nil
}

func (ds *DataSet) String() string {
	return ds.string(0)
}

func (ds *DataSet) string(indentLvl int) string {
	indent := strings.Repeat(">", indentLvl)
	lines := make([]string, 0, ds.Len())
	for _, element := range ds.Elements() {
		if seq, ok := element.ValueField.(*Sequence); ok {
			lines = append(lines, fmt.Sprintf("%s%v %s:%s", indent, element.Tag, element.VR.Name, seq.string(indentLvl)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s%v %s: %v", indent, element.Tag, element.VR.Name, element.ValueField))
	}
	return strings.Join(lines, "\n")
}

// Sequence models a DICOM sequence of items: an ordered list of nested
// DataSets.
type Sequence struct {
	Items []*DataSet
}

func (seq *Sequence) append(dataSet *DataSet) {
	seq.Items = append(seq.Items, dataSet)
}

func (seq *Sequence) String() string {
	return seq.string(0)
}

func (seq *Sequence) string(indentLvl int) string {
	lines := make([]string, 0)
	for _, obj := range seq.Items {
		lines = append(lines, obj.string(indentLvl+1))
	}
	return "\n" + strings.Join(lines, "\n")
}

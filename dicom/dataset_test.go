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
	"reflect"
	"testing"
)

func TestDataSet_insertionOrder(t *testing.T) {
	// deliberately out of numeric order
	ds := mustDataSet(t,
		&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{1}},
		&DataElement{Tag: SpecificCharacterSetTag, VR: CSVR, ValueField: []string{"ISO_IR 192"}},
		&DataElement{Tag: ColumnsTag, VR: USVR, ValueField: []uint16{2}})

	wantOrder := []DataElementTag{RowsTag, SpecificCharacterSetTag, ColumnsTag}
	if got := ds.Tags(); !reflect.DeepEqual(got, wantOrder) {
		t.Fatalf("Tags() => %v, want %v", got, wantOrder)
	}

	elements := ds.Elements()
	if len(elements) != 3 {
		t.Fatalf("Elements() returned %d elements, want 3", len(elements))
	}
	for i, e := range elements {
		if e.Tag != wantOrder[i] {
			t.Fatalf("element %d has tag %v, want %v", i, e.Tag, wantOrder[i])
		}
	}
}

func TestDataSet_sortedTags(t *testing.T) {
	ds := mustDataSet(t,
		&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{1}},
		&DataElement{Tag: SpecificCharacterSetTag, VR: CSVR, ValueField: []string{"ISO_IR 192"}},
		&DataElement{Tag: ColumnsTag, VR: USVR, ValueField: []uint16{2}})

	want := []DataElementTag{SpecificCharacterSetTag, RowsTag, ColumnsTag}
	if got := ds.SortedTags(); !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedTags() => %v, want %v", got, want)
	}
}

func TestDataSet_addRejectsDuplicates(t *testing.T) {
	ds := mustDataSet(t, &DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{1}})
	err := ds.Add(&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{2}})
	if err == nil {
		t.Fatal("expected duplicate tag error from Add")
	}
}

func TestDataSet_putKeepsPosition(t *testing.T) {
	ds := mustDataSet(t,
		&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{1}},
		&DataElement{Tag: ColumnsTag, VR: USVR, ValueField: []uint16{2}})

	ds.Put(&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{9}})

	want := []DataElementTag{RowsTag, ColumnsTag}
	if got := ds.Tags(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags() => %v, want %v", got, want)
	}
	rows, _ := ds.Get(RowsTag)
	if !reflect.DeepEqual(rows.ValueField, []uint16{9}) {
		t.Fatalf("Put did not replace the value: got %v", rows.ValueField)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() => %d, want 2", ds.Len())
	}
}

func TestDataSet_metaElements(t *testing.T) {
	ds := mustDataSet(t,
		&DataElement{Tag: TransferSyntaxUIDTag, VR: UIVR, ValueField: []string{ExplicitVRLittleEndianUID}},
		&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{1}})

	meta := ds.MetaElements()
	if got := meta.Tags(); !reflect.DeepEqual(got, []DataElementTag{TransferSyntaxUIDTag}) {
		t.Fatalf("MetaElements().Tags() => %v, want transfer syntax UID only", got)
	}
	if !meta.isMetaHeader() {
		t.Fatal("expected MetaElements result to qualify as a meta header")
	}
	if ds.isMetaHeader() {
		t.Fatal("data set with non-meta elements must not qualify as a meta header")
	}
}

func TestDataSet_transferSyntax(t *testing.T) {
	ds := mustDataSet(t,
		&DataElement{Tag: TransferSyntaxUIDTag, VR: UIVR, ValueField: []string{ImplicitVRLittleEndianUID}})

	syntax, err := ds.transferSyntax()
	if err != nil {
		t.Fatalf("transferSyntax() => %v", err)
	}
	if syntax.UID() != ImplicitVRLittleEndianUID {
		t.Fatalf("got syntax %v, want implicit VR little endian", syntax.UID())
	}

	if _, err := NewDataSet().transferSyntax(); err == nil {
		t.Fatal("expected error when transfer syntax element is missing")
	}
}

func TestDataElement_IntValue(t *testing.T) {
	testCases := []struct {
		name    string
		element *DataElement
		want    int64
		wantErr bool
	}{
		{"uint16", &DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{300}}, 300, false},
		{"int16", &DataElement{Tag: PixelPaddingValueTag, VR: SSVR, ValueField: []int16{-5}}, -5, false},
		{"uint32", &DataElement{Tag: FileMetaInformationGroupLengthTag, VR: ULVR, ValueField: []uint32{7}}, 7, false},
		{"non-integral", &DataElement{Tag: 0x00100010, VR: PNVR, ValueField: []string{"x"}}, 0, true},
		{"empty", &DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{}}, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.element.IntValue()
			if (err != nil) != tc.wantErr {
				t.Fatalf("IntValue() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("IntValue() => %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDataSet_string(t *testing.T) {
	item := mustDataSet(t,
		&DataElement{Tag: 0x00080018, VR: UIVR, ValueField: []string{"1.2.3"}})
	ds := mustDataSet(t,
		&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{300}},
		&DataElement{Tag: 0x00081110, VR: SQVR, ValueField: &Sequence{Items: []*DataSet{item}}})

	if s := ds.String(); s == "" {
		t.Fatal("String() returned empty output")
	}
}

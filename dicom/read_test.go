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
	"io"
	"reflect"
	"testing"
)

func TestReadDataElement(t *testing.T) {
	// see http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2 for byte
	// structure
	testCases := []struct {
		name     string
		bytes    []byte
		syntax   TransferSyntax
		expected *DataElement
		err      error
	}{
		{
			"unsigned long ExplicitVRLittleEndian",
			[]byte{0x02, 0x00, 0x00, 0x00, 'U', 'L', 0x04, 0x00, 0xCA, 0x00, 0x00, 0x00},
			explicitVRLittleEndian,
			&DataElement{Tag: 0x00020000, VR: ULVR, ValueField: []uint32{202}, ValueLength: 4},
			nil,
		},
		{
			"unsigned short 300 decodes from 2C 01",
			[]byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x02, 0x00, 0x2C, 0x01},
			explicitVRLittleEndian,
			&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{300}, ValueLength: 2},
			nil,
		},
		{
			"unsigned short ExplicitVRBigEndian",
			[]byte{0x00, 0x28, 0x00, 0x10, 'U', 'S', 0x00, 0x02, 0x01, 0x2C},
			explicitVRBigEndian,
			&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{300}, ValueLength: 2},
			nil,
		},
		{
			"person name components preserved",
			concat([]byte{0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x08, 0x00}, []byte("Doe^John")),
			explicitVRLittleEndian,
			&DataElement{Tag: 0x00100010, VR: PNVR, ValueField: []string{"Doe^John"}, ValueLength: 8},
			nil,
		},
		{
			"odd length text trims padding",
			concat([]byte{0x10, 0x00, 0x20, 0x00, 'L', 'O', 0x04, 0x00}, []byte("ID1 ")),
			explicitVRLittleEndian,
			&DataElement{Tag: 0x00100020, VR: LOVR, ValueField: []string{"ID1"}, ValueLength: 4},
			nil,
		},
		{
			"UI trims null padding",
			concat([]byte{0x02, 0x00, 0x10, 0x00, 'U', 'I', 0x06, 0x00}, []byte("1.2.3\x00")),
			explicitVRLittleEndian,
			&DataElement{Tag: TransferSyntaxUIDTag, VR: UIVR, ValueField: []string{"1.2.3"}, ValueLength: 6},
			nil,
		},
		{
			"multi-valued text splits on backslash",
			concat([]byte{0x08, 0x00, 0x08, 0x00, 'C', 'S', 0x0E, 0x00}, []byte("ORIGINAL\\AXIAL")),
			explicitVRLittleEndian,
			&DataElement{Tag: 0x00080008, VR: CSVR, ValueField: []string{"ORIGINAL", "AXIAL"}, ValueLength: 14},
			nil,
		},
		{
			"implicit VR resolves from dictionary",
			concat(implicitElem(RowsTag, []byte{0x2C, 0x01})),
			implicitVRLittleEndian,
			&DataElement{Tag: RowsTag, VR: USVR, ValueField: []uint16{300}, ValueLength: 2},
			nil,
		},
		{
			"attribute tag value",
			[]byte{0x00, 0x28, 0x00, 0x09, 'A', 'T', 0x00, 0x04, 0x00, 0x28, 0x01, 0x03},
			explicitVRBigEndian,
			&DataElement{Tag: 0x00280009, VR: ATVR, ValueField: []uint32{0x00280103}, ValueLength: 4},
			nil,
		},
		{
			"Item Delimination Item",
			[]byte{0xFE, 0xFF, 0x0D, 0xE0, 0x00, 0x00, 0x00, 0x00},
			explicitVRLittleEndian,
			nil,
			io.EOF,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			element, err := readElementFromBytes(tc.bytes, tc.syntax)
			if err != tc.err {
				t.Fatalf("readDataElement(_, _) => (%v, %v), want (%v, %v)",
					element, err, tc.expected, tc.err)
			}
			if tc.expected != nil && !reflect.DeepEqual(*element, *tc.expected) {
				t.Fatalf("readDataElement(_, _) => (%v, %v) want (%v, %v)",
					*element, err, *tc.expected, tc.err)
			}
		})
	}
}

func TestReadDataElement_errors(t *testing.T) {
	testCases := []struct {
		name   string
		bytes  []byte
		syntax TransferSyntax
		opts   []ParseOption
		want   error
	}{
		{
			"value shorter than declared length",
			[]byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x04, 0x00, 0x2C},
			explicitVRLittleEndian,
			nil,
			ErrTruncatedStream,
		},
		{
			"length field cut off",
			[]byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x02},
			explicitVRLittleEndian,
			nil,
			ErrTruncatedStream,
		},
		{
			"strict mode rejects unknown implicit tag",
			implicitElem(0x00090001, []byte{0x00, 0x00}),
			implicitVRLittleEndian,
			[]ParseOption{WithStrict()},
			ErrUnknownTag,
		},
		{
			"strict mode rejects odd numeric length",
			concat([]byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x03, 0x00}, []byte{1, 2, 3}),
			explicitVRLittleEndian,
			[]ParseOption{WithStrict()},
			ErrMalformedValue,
		},
		{
			"undefined length outside pixel data",
			[]byte{0x08, 0x00, 0x00, 0x10, 'O', 'B', 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
			explicitVRLittleEndian,
			nil,
			ErrMalformedValue,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readElementFromBytes(tc.bytes, tc.syntax, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("readDataElement(_, _) => %v, want error matching %v", err, tc.want)
			}
		})
	}
}

func TestReadDataElement_lenientFallbacks(t *testing.T) {
	t.Run("unknown implicit tag falls back to UN", func(t *testing.T) {
		element, err := readElementFromBytes(
			implicitElem(0x00090001, []byte{0x01, 0x02}), implicitVRLittleEndian)
		if err != nil {
			t.Fatalf("readDataElement(_, _) => %v", err)
		}
		if element.VR != UNVR {
			t.Fatalf("got VR %v, want UN", element.VR)
		}
	})

	t.Run("malformed numeric value preserved as UnparsedValue", func(t *testing.T) {
		element, err := readElementFromBytes(
			concat([]byte{0x28, 0x00, 0x10, 0x00, 'U', 'S', 0x03, 0x00}, []byte{1, 2, 3}),
			explicitVRLittleEndian)
		if err != nil {
			t.Fatalf("readDataElement(_, _) => %v", err)
		}
		uv, ok := element.ValueField.(UnparsedValue)
		if !ok {
			t.Fatalf("got ValueField %T, want UnparsedValue", element.ValueField)
		}
		if !reflect.DeepEqual(uv.Raw, []byte{1, 2, 3}) {
			t.Fatalf("got raw bytes %v, want [1 2 3]", uv.Raw)
		}
		if !errors.Is(uv.Err, ErrMalformedValue) {
			t.Fatalf("got recorded error %v, want ErrMalformedValue", uv.Err)
		}
	})
}

func TestReadDataElement_ambiguousVRPending(t *testing.T) {
	element, err := readElementFromBytes(
		implicitElem(PixelPaddingValueTag, []byte{0xFF, 0xFF}), implicitVRLittleEndian)
	if err != nil {
		t.Fatalf("readDataElement(_, _) => %v", err)
	}
	pending, ok := element.ValueField.(PendingValue)
	if !ok {
		t.Fatalf("got ValueField %T, want PendingValue", element.ValueField)
	}
	if pending.Candidates != [2]*VR{USVR, SSVR} {
		t.Fatalf("got candidates %v, want [US SS]", pending.Candidates)
	}
	if !reflect.DeepEqual(pending.Raw, []byte{0xFF, 0xFF}) {
		t.Fatalf("got raw bytes %v, want [255 255]", pending.Raw)
	}
}

func TestReadValueLength(t *testing.T) {
	testCases := []struct {
		name     string
		bytes    []byte
		vr       *VR
		syntax   TransferSyntax
		expected uint32
	}{
		{
			"Sequence explicitVRLittleEndian",
			[]byte{0x00, 0x00, 0x11, 0x22, 0x33, 0x44},
			SQVR,
			explicitVRLittleEndian,
			0x44332211,
		},
		{
			"Sequence explicitVRBigEndian",
			[]byte{0x00, 0x00, 0x11, 0x22, 0x33, 0x44},
			SQVR,
			explicitVRBigEndian,
			0x11223344,
		},
		{
			"unsigned short explicitVRLittleEndian",
			[]byte{0x11, 0x22},
			USVR,
			explicitVRLittleEndian,
			0x2211,
		},
		{
			"unsigned short explicitVRBigEndian",
			[]byte{0x11, 0x22},
			USVR,
			explicitVRBigEndian,
			0x1122,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			length, err := tc.syntax.readValueLength(dcmReaderFromBytes(tc.bytes), tc.vr)
			if err != nil {
				t.Fatalf("readValueLength(_, _) => %v", err)
			}
			if length != tc.expected {
				t.Fatalf("got %v, want %v", length, tc.expected)
			}
		})
	}
}

func TestReadTag(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		want   []uint32
		syntax TransferSyntax
	}{
		{
			"read tag in big endian",
			[]byte{0x00, 0x02, 0x00, 0x10},
			[]uint32{0x00020010},
			explicitVRBigEndian,
		},
		{
			"read tag in little endian",
			[]byte{0x02, 0x00, 0x10, 0x00},
			[]uint32{0x00020010},
			explicitVRLittleEndian,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readTag(dcmReaderFromBytes(tc.in), tc.syntax, uint32(len(tc.in)))
			if err != nil {
				t.Fatalf("readTag(_, _, _) => %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

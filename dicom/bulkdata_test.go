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

func encapsulatedPixelData(fragments ...[]byte) []byte {
	data := concat(
		[]byte{0xE0, 0x7F, 0x10, 0x00, 'O', 'B', 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
		// empty basic offset table
		[]byte{0xFE, 0xFF, 0x00, 0xE0, 0x00, 0x00, 0x00, 0x00})
	for _, f := range fragments {
		data = concat(data,
			[]byte{0xFE, 0xFF, 0x00, 0xE0},
			[]byte{byte(len(f)), byte(len(f) >> 8), byte(len(f) >> 16), byte(len(f) >> 24)},
			f)
	}
	return concat(data, sequenceDelimiter)
}

func TestOneShotIterator(t *testing.T) {
	element, err := readElementFromBytes(
		explicitElem(PixelDataTag, "OW", []byte{0x11, 0x11, 0x22, 0x22}), explicitVRLittleEndian)
	if err != nil {
		t.Fatalf("readDataElement(_, _) => %v", err)
	}
	iter, ok := element.ValueField.(BulkDataIterator)
	if !ok {
		t.Fatalf("got ValueField %T, want BulkDataIterator", element.ValueField)
	}

	fragments, err := CollectFragments(iter)
	if err != nil {
		t.Fatalf("CollectFragments(_) => %v", err)
	}
	if want := [][]byte{{0x11, 0x11, 0x22, 0x22}}; !reflect.DeepEqual(fragments, want) {
		t.Fatalf("got %v, want %v", fragments, want)
	}

	if _, err := iter.Next(); err != io.EOF {
		t.Fatalf("expected exhausted iterator to return io.EOF, got %v", err)
	}
}

func TestEncapsulatedFormatIterator(t *testing.T) {
	frag1 := []byte{1, 2, 3, 4}
	frag2 := []byte{5, 6}
	element, err := readElementFromBytes(encapsulatedPixelData(frag1, frag2), explicitVRLittleEndian)
	if err != nil {
		t.Fatalf("readDataElement(_, _) => %v", err)
	}
	if element.ValueLength != UndefinedLength {
		t.Fatalf("got ValueLength %v, want UndefinedLength", element.ValueLength)
	}

	iter := element.ValueField.(BulkDataIterator)
	fragments, err := CollectFragments(iter)
	if err != nil {
		t.Fatalf("CollectFragments(_) => %v", err)
	}
	// the first fragment is the (empty) basic offset table
	want := [][]byte{{}, frag1, frag2}
	if !reflect.DeepEqual(fragments, want) {
		t.Fatalf("got %v, want %v", fragments, want)
	}
}

func TestCollectFragmentReferences(t *testing.T) {
	frag1 := []byte{1, 2, 3, 4}
	frag2 := []byte{5, 6}
	element, err := readElementFromBytes(encapsulatedPixelData(frag1, frag2), explicitVRLittleEndian)
	if err != nil {
		t.Fatalf("readDataElement(_, _) => %v", err)
	}

	refs, err := CollectFragmentReferences(element.ValueField.(BulkDataIterator))
	if err != nil {
		t.Fatalf("CollectFragmentReferences(_) => %v", err)
	}

	// offsets count from the start of the element: 12 byte header, then an 8
	// byte item header before each fragment
	want := []BulkDataReference{
		{ByteRegion{20, 0}},
		{ByteRegion{28, 4}},
		{ByteRegion{40, 2}},
	}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
}

func TestEncapsulatedFormatIterator_errors(t *testing.T) {
	t.Run("missing sequence delimiter", func(t *testing.T) {
		data := encapsulatedPixelData([]byte{1, 2})
		element, err := readElementFromBytes(data[:len(data)-8], explicitVRLittleEndian)
		if err != nil {
			t.Fatalf("readDataElement(_, _) => %v", err)
		}
		_, err = CollectFragments(element.ValueField.(BulkDataIterator))
		if !errors.Is(err, ErrTruncatedStream) {
			t.Fatalf("got %v, want error matching ErrTruncatedStream", err)
		}
	})

	t.Run("fragment with undefined length", func(t *testing.T) {
		data := concat(
			[]byte{0xE0, 0x7F, 0x10, 0x00, 'O', 'B', 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
			[]byte{0xFE, 0xFF, 0x00, 0xE0, 0xFF, 0xFF, 0xFF, 0xFF})
		element, err := readElementFromBytes(data, explicitVRLittleEndian)
		if err != nil {
			t.Fatalf("readDataElement(_, _) => %v", err)
		}
		_, err = CollectFragments(element.ValueField.(BulkDataIterator))
		if !errors.Is(err, ErrMalformedValue) {
			t.Fatalf("got %v, want error matching ErrMalformedValue", err)
		}
	})
}

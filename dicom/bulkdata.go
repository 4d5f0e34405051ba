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
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
)

// ByteRegion is a contiguous span of the original input stream.
type ByteRegion struct {
	Offset int64
	Length int64
}

// BulkDataReference describes the location of a bulk data fragment within the
// input stream instead of buffering its bytes.
type BulkDataReference struct {
	Reference ByteRegion
}

// BulkDataReader represents a streaming reader of bulk data such as pixel data or waveforms.
type BulkDataReader struct {
	io.Reader

	// Offset is the number of bytes in the file preceding the bulk data
	// described by the BulkDataReader
	Offset int64
}

// Close discards all bytes in the reader
func (r *BulkDataReader) Close() error {
	_, err := io.Copy(ioutil.Discard, r)
	return err
}

// BulkDataIterator represents an iterator over fragments of bulk data such as pixel data or
// waveforms.
type BulkDataIterator interface {
	// Next returns the next fragment in the iterator. If there are no more fragments to be
	// returned, the error io.EOF is returned. In addition, any previously returned
	// BulkDataReaders from previous calls to Next are emptied.
	Next() (*BulkDataReader, error)

	// Close discards all remaining fragments in the iterator. In addition, any previously
	// returned BulkDataReaders from calls to Next are emptied.
	Close() error
}

// oneShotIterator is a BulkDataIterator that contains exactly one BulkDataReader. It is used for
// bulk data in the native (uncompressed) format.
type oneShotIterator struct {
	cr    *countReader
	empty bool
}

func newOneShotIterator(cr *countReader) BulkDataIterator {
	return &oneShotIterator{cr, false}
}

func (it *oneShotIterator) Next() (*BulkDataReader, error) {
	if it.empty {
		return nil, io.EOF
	}

	it.empty = true
	return &BulkDataReader{it.cr, it.cr.bytesRead}, nil
}

func (it *oneShotIterator) Close() error {
	if _, err := io.Copy(ioutil.Discard, it.cr); err != nil {
		return fmt.Errorf("closing bulk data: %v", err)
	}
	it.empty = true
	return nil
}

// encapsulatedFormatIterator iterates over the fragment items of pixel data
// in the encapsulated format described in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4.
// The first fragment returned is the basic offset table, which may be empty.
type encapsulatedFormatIterator struct {
	dr            *dcmReader
	currentReader *BulkDataReader
	empty         bool
}

func newEncapsulatedFormatIterator(dr *dcmReader) BulkDataIterator {
	return &encapsulatedFormatIterator{dr, nil, false}
}

func (it *encapsulatedFormatIterator) Next() (*BulkDataReader, error) {
	if it.empty {
		return nil, io.EOF
	}
	if it.currentReader != nil {
		if err := it.currentReader.Close(); err != nil {
			return nil, err
		}
	}

	// encapsulated pixel data only occurs in little endian transfer syntaxes
	tag, err := processItemTag(it.dr, binary.LittleEndian)
	if err == io.EOF {
		return nil, fmt.Errorf("unexpected EOF in encapsulated pixel data: %w", ErrTruncatedStream)
	}
	if err != nil {
		return nil, err
	}
	if tag == SequenceDelimitationItemTag {
		return nil, it.terminate()
	}

	length, err := it.dr.UInt32(binary.LittleEndian)
	if err != nil {
		return nil, truncatedIf(err, "reading fragment item length")
	}
	if length >= UndefinedLength {
		return nil, fmt.Errorf("fragment item with undefined length: %w", ErrMalformedValue)
	}

	fragment := limitCountReader(it.dr.cr, int64(length))
	it.currentReader = &BulkDataReader{fragment, fragment.bytesRead}
	return it.currentReader, nil
}

func (it *encapsulatedFormatIterator) terminate() error {
	length, err := it.dr.UInt32(binary.LittleEndian)
	if err != nil {
		return truncatedIf(err, "reading sequence delimiter length")
	}
	if length != 0 {
		return fmt.Errorf("expected 0 length on sequence delimiter of encapsulated data: %w", ErrMalformedValue)
	}
	it.empty = true
	return io.EOF
}

func (it *encapsulatedFormatIterator) Close() error {
	for _, err := it.Next(); err != io.EOF; _, err = it.Next() {
		if err != nil {
			return err
		}
	}
	return nil
}

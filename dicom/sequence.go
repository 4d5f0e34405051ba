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
)

// SequenceIterator is an iterator over a DICOM Sequence of Items in the order in which they appear
// in the DICOM file.
type SequenceIterator interface {
	// Next returns the next item in the DICOM Sequence of Items. If there is no next item, the error
	// io.EOF is returned. In addition, any previously returned iterators from Next are emptied.
	Next() (DataElementIterator, error)

	// Close discards all remaining items in the iterator. In addition, any previously returned
	// iterators from calls to Next are emptied.
	Close() error
}

// newSequenceIterator creates the iterator for a sequence value field. depth
// is the nesting level of the sequence's items; it is checked against the
// configured recursion limit before any item is read so pathological nesting
// fails cleanly instead of exhausting the stack.
func newSequenceIterator(dr *dcmReader, length uint32, md dicomMetaData, cfg *parseConfig, depth int) (SequenceIterator, error) {
	if depth > cfg.recursionLimit {
		return nil, fmt.Errorf("sequence nesting depth %d exceeds limit %d: %w",
			depth, cfg.recursionLimit, ErrRecursionLimitExceeded)
	}
	if length < UndefinedLength {
		return &explicitLengthSequenceIterator{dr.Limit(int64(length)), md, cfg, depth, nil}, nil
	}
	return &undefinedLengthSequenceIterator{dr, md, cfg, depth, nil, false}, nil
}

type explicitLengthSequenceIterator struct {
	dr             *dcmReader
	md             dicomMetaData
	cfg            *parseConfig
	depth          int
	currentSeqItem DataElementIterator
}

func (it *explicitLengthSequenceIterator) Next() (DataElementIterator, error) {
	if it.currentSeqItem != nil {
		if err := it.currentSeqItem.Close(); err != nil {
			return nil, err
		}
	}

	tag, err := processItemTag(it.dr, it.md.syntax.ByteOrder())
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	if tag == SequenceDelimitationItemTag {
		return nil, fmt.Errorf("unexpected sequence delimitation item tag in explicit length sequence: %w",
			ErrMalformedValue)
	}

	it.currentSeqItem, err = newSeqItem(it.dr, it.md, it.cfg, it.depth)

	return it.currentSeqItem, err
}

func (it *explicitLengthSequenceIterator) Close() error {
	return closeSeq(it)
}

type undefinedLengthSequenceIterator struct {
	dr             *dcmReader
	md             dicomMetaData
	cfg            *parseConfig
	depth          int
	currentSeqItem DataElementIterator
	empty          bool
}

func (it *undefinedLengthSequenceIterator) Next() (DataElementIterator, error) {
	if it.empty {
		return nil, io.EOF
	}
	if it.currentSeqItem != nil {
		if err := it.currentSeqItem.Close(); err != nil {
			return nil, err
		}
	}

	tag, err := processItemTag(it.dr, it.md.syntax.ByteOrder())
	if err == io.EOF {
		// an undefined-length sequence must be terminated by its delimiter
		// before end of stream
		return nil, fmt.Errorf("unexpected EOF in undefined length sequence: %w", ErrTruncatedStream)
	}
	if err != nil {
		return nil, err
	}
	if tag == SequenceDelimitationItemTag {
		return nil, it.terminate()
	}

	it.currentSeqItem, err = newSeqItem(it.dr, it.md, it.cfg, it.depth)

	return it.currentSeqItem, err
}

func (it *undefinedLengthSequenceIterator) terminate() error {
	itemLength, err := it.dr.UInt32(it.md.syntax.ByteOrder())
	if err != nil {
		return truncatedIf(err, "reading 32 bit length of sequence delimitation item")
	}
	if itemLength != 0 {
		return fmt.Errorf("expected 0 length on sequence delimiter: %w", ErrMalformedValue)
	}
	// this empty flag is needed for sequences of undefined sequence lengths to prevent the iterator
	// from advancing the input stream past the bytes of the sequence when Next() is called. This is
	// not used for sequences of explicit length because the input stream is wrapped in a
	// io.LimitedReader.
	it.empty = true
	return io.EOF
}

func (it *undefinedLengthSequenceIterator) Close() error {
	return closeSeq(it)
}

func processItemTag(dr *dcmReader, order binary.ByteOrder) (DataElementTag, error) {
	tag, err := dr.Tag(order)
	if err == io.EOF {
		return tag, io.EOF
	}
	if err != nil {
		return tag, truncatedIf(err, "reading item tag")
	}
	if tag != ItemTag && tag != SequenceDelimitationItemTag {
		return tag, fmt.Errorf("invalid item tag %v, want %v or %v: %w",
			tag, ItemTag, SequenceDelimitationItemTag, ErrMalformedValue)
	}

	return tag, nil
}

func newSeqItem(dr *dcmReader, md dicomMetaData, cfg *parseConfig, depth int) (DataElementIterator, error) {
	itemLength, err := dr.UInt32(md.syntax.ByteOrder())
	if err != nil {
		return nil, truncatedIf(err, "reading sequence item length")
	}

	if itemLength >= UndefinedLength {
		return newDataElementIterator(dr, md, cfg, depth, itemLength), nil
	}

	return newDataElementIterator(dr.Limit(int64(itemLength)), md, cfg, depth, itemLength), nil
}

func closeSeq(iter SequenceIterator) error {
	for _, err := iter.Next(); err != io.EOF; _, err = iter.Next() {
		if err != nil {
			return err
		}
	}
	return nil
}

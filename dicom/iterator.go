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

	"github.com/sirupsen/logrus"
)

// DataElementIterator represents an iterator over a DataSet's DataElements
type DataElementIterator interface {
	// NextElement returns the next DataElement in the DataSet. If there is no next DataElement, the
	// error io.EOF is returned. In Addition, if any previously returned DataElements contained
	// iterable objects like SequenceIterator, BulkDataIterator, these iterators are emptied.
	NextElement() (*DataElement, error)

	// Close discards all remaining DataElements in the iterator
	Close() error

	syntax() TransferSyntax

	length() uint32
}

// NewDataElementIterator creates a DataElementIterator from a DICOM file. The implementation
// returned will consume input from the io.Reader given as needed.
func NewDataElementIterator(r io.Reader, opts ...ParseOption) (DataElementIterator, error) {
	cfg := newParseConfig(opts...)

	dr := newDcmReader(r)
	if err := readDicomSignature(dr); err != nil {
		return nil, err
	}

	metaHeaderBytes, err := bufferMetadataHeader(dr, cfg)
	if err != nil {
		return nil, fmt.Errorf("reading meta header: %v", err)
	}

	syntax, err := findSyntax(metaHeaderBytes, cfg)
	if err != nil {
		return nil, fmt.Errorf("finding transfer syntax: %v", err)
	}

	metaIter := newDataElementIterator(
		newDcmReader(bytes.NewBuffer(metaHeaderBytes)), defaultMetaData, cfg, 0, UndefinedLength)

	if syntax.Deflated() {
		// the data set following the meta header is a deflated byte stream
		dr = newDcmReader(flate.NewReader(dr.cr))
	}

	metadata := dicomMetaData{syntax, defaultRepertoire}
	return &dataElementIterator{dr, metadata, cfg, 0, UndefinedLength, nil, false, metaIter}, nil
}

// newDataElementIterator creates a DataElementIterator from a byte stream that excludes header info
// (preamble and metadata elements)
func newDataElementIterator(r *dcmReader, metaData dicomMetaData, cfg *parseConfig, depth int, length uint32) DataElementIterator {
	return &dataElementIterator{r, metaData, cfg, depth, length, nil, false, emptyElementIterator{metaData}}
}

type dataElementIterator struct {
	dr             *dcmReader
	metaData       dicomMetaData
	cfg            *parseConfig
	depth          int
	nestedLength   uint32
	currentElement *DataElement
	empty          bool
	metaHeader     DataElementIterator
}

func (it *dataElementIterator) NextElement() (*DataElement, error) {
	metaElem, err := it.metaHeader.NextElement()
	if err == io.EOF {
		return it.nextDataSetElement()
	}
	if err != nil {
		return nil, err
	}
	return metaElem, nil
}

func (it *dataElementIterator) syntax() TransferSyntax {
	return it.metaData.syntax
}

func (it *dataElementIterator) length() uint32 {
	return it.nestedLength
}

func (it *dataElementIterator) nextDataSetElement() (*DataElement, error) {
	if it.empty {
		return nil, io.EOF
	}
	if err := it.closeCurrent(); err != nil {
		return nil, fmt.Errorf("closing: %w", err)
	}

	element, err := readDataElement(it.dr, &it.metaData, it.cfg, it.depth)
	if err == io.EOF {
		it.empty = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("parsing element: %w", err)
	}

	if element.Tag == SpecificCharacterSetTag {
		if err := it.switchRepertoire(element); err != nil {
			return nil, elementError(element.Tag, err)
		}
	}

	it.currentElement = element

	return it.currentElement, nil
}

// switchRepertoire makes the character repertoire declared by a Specific
// Character Set element apply to the string elements that follow it. The
// change is local to this iterator, so a repertoire declared inside a
// sequence item does not leak into the enclosing data set.
func (it *dataElementIterator) switchRepertoire(element *DataElement) error {
	terms, ok := element.ValueField.([]string)
	if !ok {
		// an UnparsedValue from a lenient parse keeps the previous repertoire
		return nil
	}

	repertoire, err := newCharacterRepertoire(terms)
	if err != nil {
		if it.cfg.strict {
			return err
		}
		logrus.WithField("terms", terms).WithError(err).Warn("keeping previous character repertoire")
		return nil
	}

	it.metaData.repertoire = repertoire
	return nil
}

func (it *dataElementIterator) Close() error {
	// empty the iterator
	for _, err := it.NextElement(); err != io.EOF; _, err = it.NextElement() {
		if err != nil {
			return fmt.Errorf("unexpected error closing iterator: %w", err)
		}
	}
	return nil
}

// closeCurrent ensures the iterator is ready to read the next DataElement. If this iterator
// previously returned a stream of bytes such as a BulkDataIterator, we need to make sure this
// previously returned stream is emptied in order to advance the input to the bytes of the
// next DataElement. This pattern is similar to the implementation of multipart.Reader in the
// go standard library. https://golang.org/src/mime/multipart/multipart.go?s=8400:8697#L303
func (it *dataElementIterator) closeCurrent() error {
	if it.currentElement == nil {
		return nil
	}

	if closer, ok := it.currentElement.ValueField.(io.Closer); ok {
		return closer.Close()
	}
	if seq, ok := it.currentElement.ValueField.(SequenceIterator); ok {
		return seq.Close()
	}

	return nil
}

func readDicomSignature(r *dcmReader) error {
	if err := r.Skip(128); err != nil {
		return fmt.Errorf("skipping preamble: %w", err)
	}

	magic, err := r.String(4)
	if err != nil {
		return fmt.Errorf("reading DICOM signature: %w", truncatedIf(err, "magic"))
	}

	if magic != "DICM" {
		return fmt.Errorf("wrong DICOM signature: %q: %w", magic, ErrMalformedValue)
	}

	return nil
}

func bufferMetadataHeader(dr *dcmReader, cfg *parseConfig) ([]byte, error) {
	firstElemBytes, err := dr.Bytes(4 /*tag*/ + 2 /*vr*/ + 2 /*len*/ + 4 /*UL=4bytes*/)
	if err != nil {
		return nil, fmt.Errorf("buffering bytes of FileMetaInformationGroupLength: %w", err)
	}
	md := defaultMetaData
	firstElem, err := readDataElement(newDcmReader(bytes.NewBuffer(firstElemBytes)), &md, cfg, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing FileMetaInformationGroupLength element: %w", err)
	}
	if firstElem.Tag != FileMetaInformationGroupLengthTag {
		return nil, fmt.Errorf("expected %v to begin the meta header, got %v: %w",
			FileMetaInformationGroupLengthTag, firstElem.Tag, ErrMalformedValue)
	}
	if metaGroupLength, ok := firstElem.ValueField.([]uint32); ok {
		if len(metaGroupLength) != 1 {
			return nil, fmt.Errorf("expected 1 value for meta group length: %w", ErrMalformedValue)
		}
		remainderBytes, err := dr.Bytes(int64(metaGroupLength[0]))
		if err != nil {
			return nil, fmt.Errorf("buffering the file meta elements: %w", err)
		}

		return append(firstElemBytes, remainderBytes...), nil
	}

	return nil, fmt.Errorf("wrong type for FileMetaInformationGroupLength. Got %v, want []uint32: %w",
		firstElem.ValueField, ErrMalformedValue)
}

func findSyntax(metaHeaderBytes []byte, cfg *parseConfig) (TransferSyntax, error) {
	metaDCMReader := newDcmReader(bytes.NewBuffer(metaHeaderBytes))
	metaIter := newDataElementIterator(metaDCMReader, defaultMetaData, cfg, 0, UndefinedLength)

	for elem, err := metaIter.NextElement(); err != io.EOF; elem, err = metaIter.NextElement() {
		if err != nil {
			return TransferSyntax{}, fmt.Errorf("reading meta element: %w", err)
		}
		if elem.Tag == TransferSyntaxUIDTag {
			return findSyntaxFromElement(elem)
		}
	}

	return TransferSyntax{}, fmt.Errorf("transfer syntax not found: %w", ErrMalformedValue)
}

func findSyntaxFromElement(element *DataElement) (TransferSyntax, error) {
	ids, ok := element.ValueField.([]string)
	if !ok {
		return TransferSyntax{}, fmt.Errorf("expected type []string for transfer syntax element: %w", ErrMalformedValue)
	}
	if len(ids) != 1 {
		return TransferSyntax{}, fmt.Errorf("expected 1 value length for transfer syntax: %w", ErrMalformedValue)
	}

	return LookupTransferSyntax(ids[0]), nil
}

type emptyElementIterator struct {
	metaData dicomMetaData
}

func (it emptyElementIterator) NextElement() (*DataElement, error) {
	return nil, io.EOF
}

func (it emptyElementIterator) syntax() TransferSyntax {
	return it.metaData.syntax
}

func (it emptyElementIterator) length() uint32 {
	return 0
}

func (it emptyElementIterator) Close() error {
	return nil
}

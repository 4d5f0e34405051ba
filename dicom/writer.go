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
	"io"
)

// DataElementWriter writes DataElements one at a time
type DataElementWriter interface {
	WriteElement(element *DataElement) error
}

var errExpectedMetaHeader = fmt.Errorf("expected header to only contain file meta elements, " +
	"use DataSet.MetaElements to filter DataSet")

// NewDataElementWriter writes the DICOM preamble, signature, and meta header to w and returns a
// DataElementWriter that writes DataElements in the transfer syntax specified by the header.
// The options are applied in the order given to all DataElements including File Meta Elements
// before being written to w.
func NewDataElementWriter(w io.Writer, header *DataSet, opts ...ConstructOption) (DataElementWriter, error) {
	if !header.isMetaHeader() {
		return nil, errExpectedMetaHeader
	}

	syntax, err := header.transferSyntax()
	if err != nil {
		return nil, fmt.Errorf("getting transfer syntax from header: %w", err)
	}
	if syntax.Deflated() {
		return nil, fmt.Errorf("writing the deflated syntax is not supported: %w", ErrUnsupportedTransferSyntax)
	}

	header, err = processDataSetForConstruct(header, opts...)
	if err != nil {
		return nil, err
	}

	dw := &dcmWriter{w}
	if err := writeDicomSignature(dw); err != nil {
		return nil, err
	}
	if err := writeMetaHeader(dw, header); err != nil {
		return nil, err
	}

	return &dataElementWriter{dw, syntax, opts, defaultRepertoire}, nil
}

type dataElementWriter struct {
	dw         *dcmWriter
	syntax     TransferSyntax
	opts       []ConstructOption
	repertoire *characterRepertoire
}

func (dew *dataElementWriter) WriteElement(element *DataElement) error {
	element, err := processElementForConstruct(element, dew.opts...)
	if err != nil {
		return err
	}
	if element == nil {
		return nil
	}
	if err := writeDataElement(dew.dw, dew.syntax, element, dew.repertoire); err != nil {
		return err
	}

	if element.Tag == SpecificCharacterSetTag {
		next, err := repertoireFromElement(element)
		if err != nil {
			return elementError(element.Tag, err)
		}
		if next != nil {
			dew.repertoire = next
		}
	}
	return nil
}

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
	"fmt"
	"io"
)

// Construct writes the given *DataSet as a DICOM file to the given io.Writer. The desired output
// transfer syntax is specified as a required TransferSyntax DataElement (0002,0010). By default,
// there is no validation against the DICOM standard of any form.
//
// If a *DataElement in the *DataSet is missing VR it will be filled in from the data dictionary.
// Value lengths are ignored and re-calculated from the serialized value field. Elements are
// written in the order they appear in the DataSet; file meta elements are always written first, in
// the Explicit VR Little Endian syntax, behind a re-calculated
// FileMetaInformationGroupLength element.
func Construct(w io.Writer, dataSet *DataSet, opts ...ConstructOption) error {
	syntax, err := dataSet.transferSyntax()
	if err != nil {
		return fmt.Errorf("getting transfer syntax from data set: %w", err)
	}
	if syntax.Deflated() {
		return fmt.Errorf("writing the deflated syntax is not supported: %w", ErrUnsupportedTransferSyntax)
	}

	dataSet, err = processDataSetForConstruct(dataSet, opts...)
	if err != nil {
		return err
	}

	dw := &dcmWriter{w}
	if err := writeDicomSignature(dw); err != nil {
		return err
	}
	if err := writeMetaHeader(dw, dataSet); err != nil {
		return err
	}

	mainDataSet := NewDataSet()
	for _, element := range dataSet.Elements() {
		if !element.Tag.IsMetaElement() {
			mainDataSet.Put(element)
		}
	}
	return writeDataSet(dw, syntax, mainDataSet, defaultRepertoire)
}

// WriteDataSet writes a raw data set with no preamble, DICM signature or meta
// header under the given transfer syntax.
func WriteDataSet(w io.Writer, syntax TransferSyntax, dataSet *DataSet, opts ...ConstructOption) error {
	if syntax.Deflated() {
		return fmt.Errorf("writing the deflated syntax is not supported: %w", ErrUnsupportedTransferSyntax)
	}

	dataSet, err := processDataSetForConstruct(dataSet, opts...)
	if err != nil {
		return err
	}
	return writeDataSet(&dcmWriter{w}, syntax, dataSet, defaultRepertoire)
}

// writeMetaHeader serializes the file meta elements to a scratch buffer under
// the Explicit VR Little Endian syntax required by the standard
// http://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7.1
// and writes a FileMetaInformationGroupLength element holding the scratch
// size followed by the scratch bytes. Any group length element already in the
// data set is discarded.
func writeMetaHeader(dw *dcmWriter, dataSet *DataSet) error {
	var scratch bytes.Buffer
	sdw := &dcmWriter{&scratch}
	for _, element := range dataSet.Elements() {
		if !element.Tag.IsMetaElement() || element.Tag == FileMetaInformationGroupLengthTag {
			continue
		}
		if err := writeDataElement(sdw, explicitVRLittleEndian, element, defaultRepertoire); err != nil {
			return fmt.Errorf("writing meta element: %w", err)
		}
	}

	groupLength := &DataElement{
		Tag:         FileMetaInformationGroupLengthTag,
		VR:          ULVR,
		ValueField:  []uint32{uint32(scratch.Len())},
		ValueLength: 4, // 4bytes = sizeof uint32
	}
	if err := writeDataElement(dw, explicitVRLittleEndian, groupLength, defaultRepertoire); err != nil {
		return fmt.Errorf("writing meta group length element: %w", err)
	}
	return dw.Bytes(scratch.Bytes())
}

func writeDicomSignature(dw *dcmWriter) error {
	if err := dw.Bytes(make([]byte, 128)); err != nil {
		return fmt.Errorf("writing DICOM preamble: %v", err)
	}

	if err := dw.String("DICM"); err != nil {
		return fmt.Errorf("writing DICOM signature: %v", err)
	}

	return nil
}

// processDataSetForConstruct applies construct options to every element in
// pre-order, returning a new DataSet with the original insertion order.
func processDataSetForConstruct(dataSet *DataSet, opts ...ConstructOption) (*DataSet, error) {
	if len(opts) == 0 {
		return dataSet, nil
	}

	ret := NewDataSet()
	ret.Length = dataSet.Length
	for _, element := range dataSet.Elements() {
		element, err := processElementForConstruct(element, opts...)
		if err != nil {
			return nil, err
		}
		if element == nil {
			continue
		}
		ret.Put(element)
	}
	return ret, nil
}

func processElementForConstruct(element *DataElement, opts ...ConstructOption) (*DataElement, error) {
	element, err := applyConstructOptions(element, opts...)
	if err != nil || element == nil {
		return element, err
	}

	if seq, ok := element.ValueField.(*Sequence); ok {
		processedSeq := &Sequence{Items: make([]*DataSet, 0, len(seq.Items))}
		for _, item := range seq.Items {
			processedItem, err := processDataSetForConstruct(item, opts...)
			if err != nil {
				return nil, fmt.Errorf("processing sequence item: %w", err)
			}
			processedSeq.append(processedItem)
		}
		element.ValueField = processedSeq
	}

	return element, nil
}

func applyConstructOptions(element *DataElement, opts ...ConstructOption) (*DataElement, error) {
	var err error
	for i, opt := range opts {
		element, err = opt.transform(element)
		if err != nil {
			return nil, fmt.Errorf("applying option %v: %w", i, err)
		}
		if element == nil {
			return nil, nil
		}
	}
	return element, nil
}

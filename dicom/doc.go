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

// Package dicom implements a bit-exact codec for the DICOM binary file format
// as specified in [http://dicom.nema.org/medical/dicom/current/output/pdf/part05.pdf].
//
// The package provides a high level and low level API for parsing and writing
// the DICOM format. The high level API consists of functions such as Parse,
// ReadDataSet, Construct and WriteDataSet which operate on DICOM Data Elements
// buffered into memory as a DataSet: an insertion-ordered collection of
// DataElements that re-serializes in wire order. The low level API consists of
// streaming interfaces like the DataElementIterator and the DataElementWriter
// which do not require buffering and can operate on DataElements one at a
// time. This is particularly useful for heavy image processing.
//
// Decoding is lenient by default: elements whose value bytes violate their VR
// contract are preserved as UnparsedValue placeholders carrying the raw bytes
// instead of aborting the whole parse. The WithStrict parse option makes any
// such failure abort immediately. Encoding is always strict.
package dicom

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

// dicomMetaData represents information about how objects within the DICOM
// file are stored: the active transfer syntax and the character repertoire
// declared by the most recent Specific Character Set element. Each iterator
// owns its copy, so a repertoire override inside a sequence item does not
// leak into the enclosing data set.
type dicomMetaData struct {
	syntax     TransferSyntax
	repertoire *characterRepertoire
}

var defaultMetaData = dicomMetaData{explicitVRLittleEndian, defaultRepertoire}

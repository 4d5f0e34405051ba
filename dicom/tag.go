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

import "fmt"

// DataElementTag is a unique identifier for a Data Element composed of an
// ordered pair of numbers called the group number and the element number as
// specified in http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10.
//
// The least significant 16 bits is the element number. The most significant
// 16 bits is the group number. The numeric order of DataElementTag is the
// (group, element) order of the standard.
type DataElementTag uint32

// NewDataElementTag returns the DataElementTag with the given group and
// element numbers.
func NewDataElementTag(group, element uint16) DataElementTag {
	return DataElementTag(uint32(group)<<16 | uint32(element))
}

// GroupNumber returns the group number component of the DataElementTag
func (t DataElementTag) GroupNumber() uint16 {
	return uint16(t >> 16)
}

// ElementNumber returns the element number component of the DataElementTag
func (t DataElementTag) ElementNumber() uint16 {
	return uint16(t & 0xFFFF)
}

// IsMetaElement is true if and only if the Data Element belongs to the File
// Meta Information group.
func (t DataElementTag) IsMetaElement() bool {
	return t.GroupNumber() == uint16(0x0002)
}

// IsGroupLength is true for (gggg,0000) group length elements.
func (t DataElementTag) IsGroupLength() bool {
	return t.ElementNumber() == 0
}

func (t DataElementTag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.GroupNumber(), t.ElementNumber())
}

// Tags referenced by the codec itself. Delimiter tags are reserved control
// markers with zero-length bodies, never data.
const (
	FileMetaInformationGroupLengthTag DataElementTag = 0x00020000
	MediaStorageSOPClassUIDTag        DataElementTag = 0x00020002
	MediaStorageSOPInstanceUIDTag     DataElementTag = 0x00020003
	TransferSyntaxUIDTag              DataElementTag = 0x00020010

	SpecificCharacterSetTag DataElementTag = 0x00080005

	SamplesPerPixelTag          DataElementTag = 0x00280002
	PlanarConfigurationTag      DataElementTag = 0x00280006
	NumberOfFramesTag           DataElementTag = 0x00280008
	RowsTag                     DataElementTag = 0x00280010
	ColumnsTag                  DataElementTag = 0x00280011
	BitsAllocatedTag            DataElementTag = 0x00280100
	BitsStoredTag               DataElementTag = 0x00280101
	HighBitTag                  DataElementTag = 0x00280102
	PixelRepresentationTag      DataElementTag = 0x00280103
	SmallestImagePixelValueTag  DataElementTag = 0x00280106
	LargestImagePixelValueTag   DataElementTag = 0x00280107
	PixelPaddingValueTag        DataElementTag = 0x00280120
	RedPaletteDescriptorTag     DataElementTag = 0x00281101
	GreenPaletteDescriptorTag   DataElementTag = 0x00281102
	BluePaletteDescriptorTag    DataElementTag = 0x00281103
	PixelDataProviderURLTag     DataElementTag = 0x00287FE0
	EncapsulatedDocumentTag     DataElementTag = 0x00420011
	AudioSampleDataTag          DataElementTag = 0x5000200C
	CurveDataTag                DataElementTag = 0x50003000
	WaveformBitsAllocatedTag    DataElementTag = 0x54001004
	WaveformDataTag             DataElementTag = 0x54001010
	SpectroscopyDataTag         DataElementTag = 0x56000020
	OverlayDataTag              DataElementTag = 0x60003000
	FloatPixelDataTag           DataElementTag = 0x7FE00008
	DoubleFloatPixelDataTag     DataElementTag = 0x7FE00009
	PixelDataTag                DataElementTag = 0x7FE00010

	ItemTag                     DataElementTag = 0xFFFEE000
	ItemDelimitationItemTag     DataElementTag = 0xFFFEE00D
	SequenceDelimitationItemTag DataElementTag = 0xFFFEE0DD
)

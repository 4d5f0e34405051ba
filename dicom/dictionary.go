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

// ValueMultiplicity is the legal range of value counts for a tag. Max < 0
// means unbounded.
type ValueMultiplicity struct {
	Min, Max int
}

// Contains reports whether n values is within the range.
func (vm ValueMultiplicity) Contains(n int) bool {
	if n < vm.Min {
		return false
	}
	return vm.Max < 0 || n <= vm.Max
}

// DataDictionary resolves tag metadata for implicit VR decoding. The codec
// consumes this interface; the full standard dictionary is an external
// collaborator that callers may supply via WithDictionary.
type DataDictionary interface {
	// LookupVR returns the VR registered for the tag, or an error matching
	// ErrUnknownTag if the tag has no entry.
	LookupVR(tag DataElementTag) (*VR, error)

	// LookupMultiplicity returns the legal value multiplicity range for the
	// tag, or an error matching ErrUnknownTag.
	LookupMultiplicity(tag DataElementTag) (ValueMultiplicity, error)
}

type dictEntry struct {
	vr *VR
	vm ValueMultiplicity
}

// mapDictionary is the built-in DataDictionary covering the tags the codec
// itself depends on plus common identification elements. Group length
// elements (gggg,0000) are resolved structurally as UL.
type mapDictionary map[DataElementTag]dictEntry

func (d mapDictionary) LookupVR(tag DataElementTag) (*VR, error) {
	if e, ok := d[tag]; ok {
		return e.vr, nil
	}
	if tag.IsGroupLength() {
		return ULVR, nil
	}
	return nil, fmt.Errorf("no dictionary entry for %v: %w", tag, ErrUnknownTag)
}

func (d mapDictionary) LookupMultiplicity(tag DataElementTag) (ValueMultiplicity, error) {
	if e, ok := d[tag]; ok {
		return e.vm, nil
	}
	if tag.IsGroupLength() {
		return ValueMultiplicity{1, 1}, nil
	}
	return ValueMultiplicity{}, fmt.Errorf("no dictionary entry for %v: %w", tag, ErrUnknownTag)
}

var (
	vm1  = ValueMultiplicity{1, 1}
	vm1N = ValueMultiplicity{1, -1}
	vm3  = ValueMultiplicity{3, 3}
)

var defaultDictionary = mapDictionary{
	FileMetaInformationGroupLengthTag: {ULVR, vm1},
	MediaStorageSOPClassUIDTag:        {UIVR, vm1},
	MediaStorageSOPInstanceUIDTag:     {UIVR, vm1},
	TransferSyntaxUIDTag:              {UIVR, vm1},
	0x00020012:                        {UIVR, vm1}, // Implementation Class UID
	0x00020013:                        {SHVR, vm1}, // Implementation Version Name

	SpecificCharacterSetTag: {CSVR, vm1N},
	0x00080008:              {CSVR, vm1N}, // Image Type
	0x00080016:              {UIVR, vm1},  // SOP Class UID
	0x00080018:              {UIVR, vm1},  // SOP Instance UID
	0x00080020:              {DAVR, vm1},  // Study Date
	0x00080030:              {TMVR, vm1},  // Study Time
	0x00080060:              {CSVR, vm1},  // Modality
	0x00080070:              {LOVR, vm1},  // Manufacturer
	0x00081030:              {LOVR, vm1},  // Study Description
	0x00081032:              {SQVR, vm1},  // Procedure Code Sequence
	0x00081110:              {SQVR, vm1},  // Referenced Study Sequence
	0x00081140:              {SQVR, vm1},  // Referenced Image Sequence

	0x00100010: {PNVR, vm1},  // Patient Name
	0x00100020: {LOVR, vm1},  // Patient ID
	0x00100030: {DAVR, vm1},  // Patient Birth Date
	0x00100040: {CSVR, vm1},  // Patient Sex
	0x00101002: {SQVR, vm1},  // Other Patient IDs Sequence

	0x0020000D: {UIVR, vm1}, // Study Instance UID
	0x0020000E: {UIVR, vm1}, // Series Instance UID
	0x00200011: {ISVR, vm1}, // Series Number
	0x00200013: {ISVR, vm1}, // Instance Number
	0x00200032: {DSVR, vm3}, // Image Position (Patient)
	0x00200037: {DSVR, ValueMultiplicity{6, 6}}, // Image Orientation (Patient)

	SamplesPerPixelTag:     {USVR, vm1},
	PlanarConfigurationTag: {USVR, vm1},
	NumberOfFramesTag:      {ISVR, vm1},
	RowsTag:                {USVR, vm1},
	ColumnsTag:             {USVR, vm1},
	0x00280030:             {DSVR, ValueMultiplicity{2, 2}}, // Pixel Spacing
	BitsAllocatedTag:       {USVR, vm1},
	BitsStoredTag:          {USVR, vm1},
	HighBitTag:             {USVR, vm1},
	PixelRepresentationTag: {USVR, vm1},

	// Ambiguous US/SS tags are registered with their permissive default; the
	// element reader consults ambiguousVRRules before this table.
	SmallestImagePixelValueTag: {USVR, vm1},
	LargestImagePixelValueTag:  {USVR, vm1},
	PixelPaddingValueTag:       {USVR, vm1},
	RedPaletteDescriptorTag:    {USVR, vm3},
	GreenPaletteDescriptorTag:  {USVR, vm3},
	BluePaletteDescriptorTag:   {USVR, vm3},

	0x00400275: {SQVR, vm1}, // Request Attributes Sequence

	WaveformBitsAllocatedTag: {USVR, vm1},
	WaveformDataTag:          {OWVR, vm1},

	FloatPixelDataTag:       {OFVR, vm1},
	DoubleFloatPixelDataTag: {ODVR, vm1},
	PixelDataTag:            {OWVR, vm1},
}

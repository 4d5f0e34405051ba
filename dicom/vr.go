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
	"math"
)

// vrType is to group common encodings together
type vrType int

const (
	// textVR is for value fields that will be interpreted as simple text with space padding
	textVR vrType = iota

	// numberBinaryVR is for value fields that are parsed as binary numbers
	numberBinaryVR

	// bulkDataVR groups sequences of binary numbers
	bulkDataVR

	// uniqueIdentifierVR is for VR: UI. It has null padding
	uniqueIdentifierVR

	// sequenceVR is for VR: SQ
	sequenceVR

	// tagVR is for tags. Distinct from numberBinaryVR due to little endian byte ordering
	tagVR
)

// UndefinedLength as specified
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
const UndefinedLength = 0xffffffff

// multiValueDelimiter separates repeated values of a multi-valued VR on the
// wire.
const multiValueDelimiter = "\\"

// VR models the DICOM Value representations (VR)
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
type VR struct {
	// Name represents the 2-character VR Code
	Name string

	kind vrType

	// fixedWidth is the number of bytes per value for binary numeric VRs. A
	// value field whose length is not a multiple of fixedWidth is malformed.
	// Zero means the VR is variable width.
	fixedWidth uint32
}

var vrLookupMap = map[string]*VR{}

func newVR(text string, vrType vrType, fixedWidth uint32) *VR {
	vr := &VR{text, vrType, fixedWidth}
	vrLookupMap[vr.Name] = vr

	return vr
}

func lookupVRByName(name string) (*VR, error) {
	r, ok := vrLookupMap[name]
	if !ok {
		return nil, fmt.Errorf("unknown vr name: %v", name)
	}
	return r, nil
}

// paddingByte is the byte used to pad an odd-length value field to even
// length. Text VRs pad with space, UI and binary VRs pad with null.
func (vr *VR) paddingByte() byte {
	if vr.kind == textVR {
		return ' '
	}
	return 0x00
}

// usesCharacterRepertoire is true for the text VRs whose byte interpretation
// is governed by the Specific Character Set element (0008,0005). The
// structural VRs (CS, DA, TM, DT, AS, AE, IS, DS, UI, UR) are always in the
// default repertoire.
func (vr *VR) usesCharacterRepertoire() bool {
	switch vr {
	case SHVR, LOVR, STVR, LTVR, PNVR, UCVR, UTVR:
		return true
	}
	return false
}

// singleValued is true for text VRs in which backslash is ordinary data
// rather than a value delimiter.
func (vr *VR) singleValued() bool {
	switch vr {
	case STVR, LTVR, UTVR, URVR:
		return true
	}
	return false
}

// has32BitLength reports whether the explicit VR encoding of vr uses the
// long form: 2 reserved bytes followed by a 4-byte length. All other VRs use
// a 2-byte length. The two cases are defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
func (vr *VR) has32BitLength() bool {
	switch vr {
	case OBVR, ODVR, OFVR, OLVR, OWVR, SQVR, UCVR, URVR, UTVR, UNVR:
		return true
	default:
		return false
	}
}

// checkFixedWidth validates a value field length against the VR's fixed
// width contract.
func (vr *VR) checkFixedWidth(length uint32) error {
	if vr.fixedWidth == 0 {
		return nil
	}
	if length%vr.fixedWidth != 0 {
		return fmt.Errorf("value length %d is not a multiple of %d for VR %s: %w",
			length, vr.fixedWidth, vr.Name, ErrMalformedValue)
	}
	return nil
}

// decodeNumberBinary interprets buff as the typed value slice of a fixed
// width numeric VR under the given byte order. An empty buffer decodes to an
// empty slice.
func decodeNumberBinary(vr *VR, buff []byte, order binary.ByteOrder) (interface{}, error) {
	if err := vr.checkFixedWidth(uint32(len(buff))); err != nil {
		return nil, err
	}

	n := len(buff) / int(vr.fixedWidth)
	switch vr {
	case SSVR:
		v := make([]int16, n)
		for i := range v {
			v[i] = int16(order.Uint16(buff[2*i:]))
		}
		return v, nil
	case USVR:
		v := make([]uint16, n)
		for i := range v {
			v[i] = order.Uint16(buff[2*i:])
		}
		return v, nil
	case SLVR:
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(order.Uint32(buff[4*i:]))
		}
		return v, nil
	case ULVR:
		v := make([]uint32, n)
		for i := range v {
			v[i] = order.Uint32(buff[4*i:])
		}
		return v, nil
	case FLVR:
		v := make([]float32, n)
		for i := range v {
			v[i] = math.Float32frombits(order.Uint32(buff[4*i:]))
		}
		return v, nil
	case FDVR:
		v := make([]float64, n)
		for i := range v {
			v[i] = math.Float64frombits(order.Uint64(buff[8*i:]))
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown binary number vr: %v", vr.Name)
	}
}

// UnparsedValue preserves the raw bytes of a value field that could not be
// decoded under its VR contract. It is produced only in lenient mode, which
// tags failures instead of dropping data, and is written back verbatim.
type UnparsedValue struct {
	// Raw holds the value field bytes exactly as they appeared on the wire.
	Raw []byte

	// Err is the decode failure recorded against this value.
	Err error
}

// PendingValue carries the raw bytes of an element whose VR is ambiguous: it
// legally decodes under either of two candidate VRs depending on a sibling
// element's value. Resolution happens in a post-pass over the DataSet; see
// ResolveAmbiguousVRs.
type PendingValue struct {
	// Raw holds the undecoded value field bytes.
	Raw []byte

	// Candidates are the legal VRs, the more permissive (unsigned) first.
	Candidates [2]*VR

	order binary.ByteOrder
}

// ambiguousVRRule describes how to disambiguate a tag whose VR depends on a
// sibling element. selectAlt reports whether the sibling value selects
// Candidates[1] instead of the default Candidates[0].
type ambiguousVRRule struct {
	candidates [2]*VR
	siblingTag DataElementTag
	selectAlt  func(sibling int64) bool
}

func signedPixelRepresentation(v int64) bool { return v == 1 }

// ambiguousVRRules lists the tags this codec disambiguates. They are the US
// vs SS ambiguities of PS3.5 Annex A: the signedness of the stored values is
// selected by Pixel Representation (0028,0103).
var ambiguousVRRules = map[DataElementTag]ambiguousVRRule{
	SmallestImagePixelValueTag: {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
	LargestImagePixelValueTag:  {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
	PixelPaddingValueTag:       {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
	RedPaletteDescriptorTag:    {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
	GreenPaletteDescriptorTag:  {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
	BluePaletteDescriptorTag:   {[2]*VR{USVR, SSVR}, PixelRepresentationTag, signedPixelRepresentation},
}

// VR list obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
var (
	// textual VRs
	CSVR = newVR("CS", textVR, 0)
	SHVR = newVR("SH", textVR, 0)
	LOVR = newVR("LO", textVR, 0)
	STVR = newVR("ST", textVR, 0)
	LTVR = newVR("LT", textVR, 0)
	ASVR = newVR("AS", textVR, 0)

	// person name
	PNVR = newVR("PN", textVR, 0)

	// application entity
	AEVR = newVR("AE", textVR, 0)

	// dates/time VR
	DAVR = newVR("DA", textVR, 0)
	TMVR = newVR("TM", textVR, 0)
	DTVR = newVR("DT", textVR, 0)

	// textual numbers
	ISVR = newVR("IS", textVR, 0)
	DSVR = newVR("DS", textVR, 0)

	// binary numbers
	SSVR = newVR("SS", numberBinaryVR, 2)
	USVR = newVR("US", numberBinaryVR, 2)
	SLVR = newVR("SL", numberBinaryVR, 4)
	ULVR = newVR("UL", numberBinaryVR, 4)
	FLVR = newVR("FL", numberBinaryVR, 4)
	FDVR = newVR("FD", numberBinaryVR, 8)

	// large binary sequences
	OBVR = newVR("OB", bulkDataVR, 0)
	ODVR = newVR("OD", bulkDataVR, 8)
	OLVR = newVR("OL", bulkDataVR, 4)
	OWVR = newVR("OW", bulkDataVR, 2)
	OFVR = newVR("OF", bulkDataVR, 4)

	// unlimited char
	UCVR = newVR("UC", bulkDataVR, 0)

	// unknown
	UNVR = newVR("UN", bulkDataVR, 0)

	// URL
	URVR = newVR("UR", bulkDataVR, 0)

	// unlimited text
	UTVR = newVR("UT", bulkDataVR, 0)

	// attribute tag
	ATVR = newVR("AT", tagVR, 4)

	// unique identifier
	UIVR = newVR("UI", uniqueIdentifierVR, 0)

	// sequence
	SQVR = newVR("SQ", sequenceVR, 0)
)

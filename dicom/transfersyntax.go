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

// list of transfer syntaxes obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_A
const (
	// ImplicitVRLittleEndianUID is the Implicit VR Little Endian UID
	ImplicitVRLittleEndianUID = "1.2.840.10008.1.2"
	// ExplicitVRLittleEndianUID is the Explicit VR Little Endian UID
	ExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
	// ExplicitVRBigEndianUID is the Explicit VR Big Endian UID
	ExplicitVRBigEndianUID = "1.2.840.10008.1.2.2"
	// DeflatedExplicitVRLittleEndianUID is the Deflated Explicit VR Little Endian UID
	DeflatedExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1.99"
	// JPEGBaselineUID is the JPEG Baseline (Process 1) transfer syntax UID
	JPEGBaselineUID = "1.2.840.10008.1.2.4.50"
	// JPEG2000LosslessUID is the JPEG 2000 Image Compression (Lossless Only) UID
	JPEG2000LosslessUID = "1.2.840.10008.1.2.4.90"
	// RLELosslessUID is the RLE Lossless transfer syntax UID
	RLELosslessUID = "1.2.840.10008.1.2.5"
)

// TransferSyntax is an immutable descriptor of how an entire data set is
// encoded: byte order, explicit vs implicit VR tagging and, for pixel data,
// which compression family applies. It is consumed read-only by every part
// of the codec.
type TransferSyntax struct {
	uid         string
	order       binary.ByteOrder
	implicit    bool
	deflated    bool
	pixelFamily string
}

// UID returns the transfer syntax UID this descriptor was derived from.
func (ts TransferSyntax) UID() string {
	return ts.uid
}

// ByteOrder returns the byte order of all binary fields under this syntax.
func (ts TransferSyntax) ByteOrder() binary.ByteOrder {
	return ts.order
}

// ExplicitVR reports whether elements carry an inline 2-character VR code.
func (ts TransferSyntax) ExplicitVR() bool {
	return !ts.implicit
}

// Deflated reports whether the data set following the meta header is
// compressed with the RFC 1951 deflate algorithm.
func (ts TransferSyntax) Deflated() bool {
	return ts.deflated
}

// PixelCompressionFamily returns the transfer syntax identifier of the pixel
// data compression family, and false when pixel data is native
// (uncompressed).
func (ts TransferSyntax) PixelCompressionFamily() (string, bool) {
	return ts.pixelFamily, ts.pixelFamily != ""
}

var (
	explicitVRLittleEndian         = TransferSyntax{ExplicitVRLittleEndianUID, binary.LittleEndian, false, false, ""}
	implicitVRLittleEndian         = TransferSyntax{ImplicitVRLittleEndianUID, binary.LittleEndian, true, false, ""}
	explicitVRBigEndian            = TransferSyntax{ExplicitVRBigEndianUID, binary.BigEndian, false, false, ""}
	deflatedExplicitVRLittleEndian = TransferSyntax{DeflatedExplicitVRLittleEndianUID, binary.LittleEndian, false, true, ""}
)

// Exported descriptors for the uncompressed syntaxes, usable with ReadDataSet
// and WriteDataSet when no Part-10 header is present.
var (
	ExplicitVRLittleEndian = explicitVRLittleEndian
	ImplicitVRLittleEndian = implicitVRLittleEndian
	ExplicitVRBigEndian    = explicitVRBigEndian
)

// LookupTransferSyntax returns the TransferSyntax descriptor for a UID. Any
// UID other than the four uncompressed syntaxes denotes encapsulated pixel
// data and is otherwise encoded as explicit VR little endian according to
// PS3.5 A.4 http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
func LookupTransferSyntax(uid string) TransferSyntax {
	switch uid {
	case ExplicitVRLittleEndianUID:
		return explicitVRLittleEndian
	case ImplicitVRLittleEndianUID:
		return implicitVRLittleEndian
	case ExplicitVRBigEndianUID:
		return explicitVRBigEndian
	case DeflatedExplicitVRLittleEndianUID:
		return deflatedExplicitVRLittleEndian
	}

	return TransferSyntax{uid, binary.LittleEndian, false, false, uid}
}

const (
	vrSize  = 2
	tagSize = 4
)

// readVR resolves the VR of the element being read: the inline 2-character
// code under explicit VR, a dictionary lookup otherwise. In lenient mode an
// unresolvable tag falls back to UN with the raw bytes retained for later
// re-resolution; strict mode fails with ErrUnknownTag.
func (ts TransferSyntax) readVR(dr *dcmReader, tag DataElementTag, cfg *parseConfig) (*VR, error) {
	if ts.implicit {
		vr, err := cfg.dictionary.LookupVR(tag)
		if err != nil {
			if cfg.strict {
				return nil, err
			}
			return UNVR, nil
		}
		return vr, nil
	}

	vrString, err := dr.String(vrSize)
	if err != nil {
		return nil, truncatedIf(err, "reading vr code")
	}

	vr, err := lookupVRByName(vrString)
	if err != nil && !cfg.strict {
		// Real-world files occasionally carry junk VR codes. Treat the value
		// as unknown binary with the long length form so the length field is
		// still consumed coherently.
		return UNVR, nil
	}
	return vr, err
}

// readValueLength reads the 2 or 4 byte length field following the VR. The
// undefined length sentinel is returned as UndefinedLength.
func (ts TransferSyntax) readValueLength(dr *dcmReader, vr *VR) (uint32, error) {
	if ts.implicit {
		length, err := dr.UInt32(ts.order)
		return length, truncatedIf(err, "reading 32 bit length")
	}

	if vr.has32BitLength() {
		if _, err := dr.UInt16(ts.order); err != nil {
			return 0, truncatedIf(err, "reading reserved field")
		}

		length, err := dr.UInt32(ts.order)
		return length, truncatedIf(err, "reading 32 bit length")
	}

	length, err := dr.UInt16(ts.order)
	return uint32(length), truncatedIf(err, "reading 16 bit length")
}

func (ts TransferSyntax) writeVR(dw *dcmWriter, vr *VR) error {
	if ts.implicit {
		// the implicit syntax does not write VR codes into the file
		return nil
	}
	return dw.String(vr.Name)
}

func (ts TransferSyntax) writeValueLength(dw *dcmWriter, vr *VR, valueFieldLength uint32) error {
	if ts.implicit {
		return dw.UInt32(ts.order, valueFieldLength)
	}

	if vr.has32BitLength() {
		if err := dw.UInt16(ts.order, 0); err != nil {
			return fmt.Errorf("writing reserved field")
		}
		if err := dw.UInt32(ts.order, valueFieldLength); err != nil {
			return fmt.Errorf("writing 32 bit length: %v", err)
		}
		return nil
	}

	if valueFieldLength > math.MaxUint16 {
		return fmt.Errorf("data element value length exceeds unsigned 16-bit length")
	}
	return dw.UInt16(ts.order, uint16(valueFieldLength))
}

// elementSize is the total wire size of an element with the given VR and
// value field length under this syntax.
func (ts TransferSyntax) elementSize(vr *VR, valueFieldLength uint32) uint32 {
	if valueFieldLength == UndefinedLength {
		return UndefinedLength
	}
	if ts.implicit {
		return tagSize + 4 /*length*/ + valueFieldLength
	}
	if vr.has32BitLength() {
		return tagSize + vrSize + 2 /*reserved*/ + 4 /*32-bit length*/ + valueFieldLength
	}
	return tagSize + vrSize + 2 /*16-bit length*/ + valueFieldLength
}

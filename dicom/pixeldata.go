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
	"strconv"
	"strings"
	"sync"
)

// ImageGeometry carries the image pixel module attributes needed to size and
// interpret pixel data frames.
type ImageGeometry struct {
	Rows                int
	Columns             int
	BitsAllocated       int
	SamplesPerPixel     int
	PlanarConfiguration int
	Frames              int
}

// FrameSize returns the byte size of one native (uncompressed) frame.
func (g ImageGeometry) FrameSize() (int, error) {
	if g.Rows <= 0 || g.Columns <= 0 || g.SamplesPerPixel <= 0 {
		return 0, fmt.Errorf("invalid image geometry %+v", g)
	}
	if g.BitsAllocated%8 != 0 || g.BitsAllocated <= 0 {
		return 0, fmt.Errorf("bits allocated %d is not a whole number of bytes", g.BitsAllocated)
	}
	return g.Rows * g.Columns * g.SamplesPerPixel * g.BitsAllocated / 8, nil
}

// NewImageGeometry derives the geometry from the image pixel module elements
// of ds. Samples Per Pixel, Planar Configuration and Number of Frames default
// to 1, 0 and 1 when absent.
func NewImageGeometry(ds *DataSet) (ImageGeometry, error) {
	geom := ImageGeometry{SamplesPerPixel: 1, PlanarConfiguration: 0, Frames: 1}

	var err error
	if geom.Rows, err = intFromElement(ds, RowsTag); err != nil {
		return geom, err
	}
	if geom.Columns, err = intFromElement(ds, ColumnsTag); err != nil {
		return geom, err
	}
	if geom.BitsAllocated, err = intFromElement(ds, BitsAllocatedTag); err != nil {
		return geom, err
	}
	if e, ok := ds.Get(SamplesPerPixelTag); ok {
		v, err := e.IntValue()
		if err != nil {
			return geom, elementError(SamplesPerPixelTag, err)
		}
		geom.SamplesPerPixel = int(v)
	}
	if e, ok := ds.Get(PlanarConfigurationTag); ok {
		v, err := e.IntValue()
		if err != nil {
			return geom, elementError(PlanarConfigurationTag, err)
		}
		geom.PlanarConfiguration = int(v)
	}
	if e, ok := ds.Get(NumberOfFramesTag); ok {
		s, err := e.StringValue()
		if err != nil {
			return geom, elementError(NumberOfFramesTag, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return geom, elementError(NumberOfFramesTag, fmt.Errorf("parsing number of frames: %w", ErrMalformedValue))
		}
		geom.Frames = n
	}

	return geom, nil
}

func intFromElement(ds *DataSet, tag DataElementTag) (int, error) {
	e, ok := ds.Get(tag)
	if !ok {
		return 0, fmt.Errorf("missing %v needed for image geometry", tag)
	}
	v, err := e.IntValue()
	if err != nil {
		return 0, elementError(tag, err)
	}
	return int(v), nil
}

// FrameDecoder decompresses one pixel data fragment group into the bytes of a
// native frame.
type FrameDecoder interface {
	DecodeFrame(compressed []byte, geom ImageGeometry) ([]byte, error)
}

// FrameEncoder compresses the bytes of one native frame.
type FrameEncoder interface {
	EncodeFrame(frame []byte, geom ImageGeometry, opts FrameEncodeOptions) ([]byte, error)
}

// FrameEncodeOptions controls fragmenting of compressed frames.
type FrameEncodeOptions struct {
	// MaxFragmentSize splits each compressed frame into fragments of at most
	// this many bytes. Zero means one fragment per frame.
	MaxFragmentSize int
}

type pixelCodec struct {
	decoder FrameDecoder
	encoder FrameEncoder
}

var (
	codecMu sync.RWMutex
	codecs  = map[string]pixelCodec{}
)

// RegisterCodec installs the decoder and encoder for a compressed transfer
// syntax UID, replacing any previous registration. Either side may be nil
// when only one direction is supported. Safe for concurrent use with the
// lookup performed by DecodeFrames and EncodeFrames.
func RegisterCodec(transferSyntaxUID string, decoder FrameDecoder, encoder FrameEncoder) {
	codecMu.Lock()
	defer codecMu.Unlock()
	codecs[transferSyntaxUID] = pixelCodec{decoder, encoder}
}

func lookupCodec(transferSyntaxUID string) (pixelCodec, bool) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	c, ok := codecs[transferSyntaxUID]
	return c, ok
}

// DecodeFrames converts buffered pixel data fragments into native frames.
// Under a native transfer syntax the single fragment is split on the frame
// size. Under a compressed syntax each frame is handed to the registered
// codec; a missing codec fails with ErrUnsupportedTransferSyntax. For
// encapsulated input the caller passes the fragments without the basic offset
// table.
func DecodeFrames(syntax TransferSyntax, fragments [][]byte, geom ImageGeometry) ([][]byte, error) {
	family, compressed := syntax.PixelCompressionFamily()
	if !compressed {
		return splitNativeFrames(bytes.Join(fragments, nil), geom)
	}

	codec, ok := lookupCodec(family)
	if !ok || codec.decoder == nil {
		return nil, fmt.Errorf("no decoder registered for transfer syntax %s: %w",
			family, ErrUnsupportedTransferSyntax)
	}

	groups, err := groupFragments(fragments, geom.Frames)
	if err != nil {
		return nil, err
	}
	frames := make([][]byte, 0, len(groups))
	for i, g := range groups {
		frame, err := codec.decoder.DecodeFrame(g, geom)
		if err != nil {
			return nil, fmt.Errorf("decoding frame %d: %w", i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// EncodeFrames is the inverse of DecodeFrames. Under a native syntax the
// frames are concatenated into a single even-padded fragment. Under a
// compressed syntax each frame is compressed by the registered codec and
// split per FrameEncodeOptions.
func EncodeFrames(syntax TransferSyntax, frames [][]byte, geom ImageGeometry, opts FrameEncodeOptions) ([][]byte, error) {
	family, compressed := syntax.PixelCompressionFamily()
	if !compressed {
		data := bytes.Join(frames, nil)
		if len(data)%2 != 0 {
			data = append(data, 0x00)
		}
		return [][]byte{data}, nil
	}

	codec, ok := lookupCodec(family)
	if !ok || codec.encoder == nil {
		return nil, fmt.Errorf("no encoder registered for transfer syntax %s: %w",
			family, ErrUnsupportedTransferSyntax)
	}

	fragments := [][]byte{}
	for i, frame := range frames {
		compressedFrame, err := codec.encoder.EncodeFrame(frame, geom, opts)
		if err != nil {
			return nil, fmt.Errorf("encoding frame %d: %w", i, err)
		}
		fragments = append(fragments, splitFragment(compressedFrame, opts.MaxFragmentSize)...)
	}
	return fragments, nil
}

// splitNativeFrames slices contiguous native pixel data into frames of the
// geometry's frame size. Up to one trailing padding byte is tolerated.
func splitNativeFrames(data []byte, geom ImageGeometry) ([][]byte, error) {
	frameSize, err := geom.FrameSize()
	if err != nil {
		return nil, err
	}
	want := frameSize * geom.Frames
	if len(data) < want || len(data) > want+1 {
		return nil, fmt.Errorf("pixel data length %d does not hold %d frames of %d bytes: %w",
			len(data), geom.Frames, frameSize, ErrMalformedValue)
	}

	frames := make([][]byte, geom.Frames)
	for i := range frames {
		frames[i] = data[i*frameSize : (i+1)*frameSize]
	}
	return frames, nil
}

// groupFragments maps encapsulated fragments onto frames: one fragment per
// frame when the counts match, all fragments into the single frame of a
// single-frame image. Any other arrangement needs the basic offset table,
// which this codec does not consume.
func groupFragments(fragments [][]byte, frames int) ([][]byte, error) {
	if len(fragments) == frames {
		return fragments, nil
	}
	if frames == 1 {
		return [][]byte{bytes.Join(fragments, nil)}, nil
	}
	return nil, fmt.Errorf("cannot map %d fragments onto %d frames: %w",
		len(fragments), frames, ErrMalformedValue)
}

func splitFragment(data []byte, maxSize int) [][]byte {
	if maxSize <= 0 || len(data) <= maxSize {
		return [][]byte{data}
	}
	var out [][]byte
	for len(data) > maxSize {
		out = append(out, data[:maxSize])
		data = data[maxSize:]
	}
	return append(out, data)
}

// FrameIterator decodes pixel data frames lazily.
type FrameIterator struct {
	syntax    TransferSyntax
	geom      ImageGeometry
	fragments [][]byte
	next      int
}

// NewFrameIterator returns an iterator over the native frames of buffered
// pixel data. Fragments exclude the basic offset table.
func NewFrameIterator(syntax TransferSyntax, fragments [][]byte, geom ImageGeometry) (*FrameIterator, error) {
	if _, compressed := syntax.PixelCompressionFamily(); !compressed {
		frames, err := splitNativeFrames(bytes.Join(fragments, nil), geom)
		if err != nil {
			return nil, err
		}
		return &FrameIterator{syntax, geom, frames, 0}, nil
	}

	groups, err := groupFragments(fragments, geom.Frames)
	if err != nil {
		return nil, err
	}
	return &FrameIterator{syntax, geom, groups, 0}, nil
}

// NextFrame returns the next native frame, decoding it on demand. io.EOF
// signals the end of the pixel data.
func (it *FrameIterator) NextFrame() ([]byte, error) {
	if it.next >= len(it.fragments) {
		return nil, io.EOF
	}
	data := it.fragments[it.next]
	it.next++

	family, compressed := it.syntax.PixelCompressionFamily()
	if !compressed {
		return data, nil
	}
	codec, ok := lookupCodec(family)
	if !ok || codec.decoder == nil {
		return nil, fmt.Errorf("no decoder registered for transfer syntax %s: %w",
			family, ErrUnsupportedTransferSyntax)
	}
	return codec.decoder.DecodeFrame(data, it.geom)
}

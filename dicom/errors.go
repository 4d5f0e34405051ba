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
	"errors"
	"fmt"
	"io"
)

// The error taxonomy of the codec. All errors returned by this package match
// exactly one of these sentinels under errors.Is, so callers can distinguish
// e.g. a missing codec backend (ErrUnsupportedTransferSyntax) from a backend
// rejecting its input (ErrMalformedValue).
var (
	// ErrTruncatedStream indicates the input ended before an expected length.
	ErrTruncatedStream = errors.New("dicom: truncated stream")

	// ErrMalformedValue indicates value bytes are present but violate the VR
	// contract (e.g. a fixed-width numeric VR with a non-multiple length).
	ErrMalformedValue = errors.New("dicom: malformed value")

	// ErrUnknownTag indicates an implicit VR element whose tag has no data
	// dictionary entry, so its VR cannot be resolved.
	ErrUnknownTag = errors.New("dicom: unknown tag")

	// ErrAmbiguousVR indicates an element whose VR depends on a sibling value
	// that could not be resolved before the element was written.
	ErrAmbiguousVR = errors.New("dicom: ambiguous VR")

	// ErrUnencodableText indicates a string that cannot be represented in any
	// declared specific character set.
	ErrUnencodableText = errors.New("dicom: unencodable text")

	// ErrUndecodableText indicates value bytes that cannot be decoded under
	// the declared specific character sets.
	ErrUndecodableText = errors.New("dicom: undecodable text")

	// ErrUnsupportedTransferSyntax indicates no codec backend is registered
	// for the transfer syntax of a pixel data payload.
	ErrUnsupportedTransferSyntax = errors.New("dicom: unsupported transfer syntax")

	// ErrRecursionLimitExceeded indicates sequence nesting deeper than the
	// configured limit.
	ErrRecursionLimitExceeded = errors.New("dicom: recursion limit exceeded")
)

// ElementError records a failure against the DataElement being processed when
// it occurred, so lenient parses can report which element was affected.
type ElementError struct {
	Tag DataElementTag
	Err error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %v: %v", e.Tag, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

func elementError(tag DataElementTag, err error) error {
	return &ElementError{tag, err}
}

// truncatedIf maps the io errors produced by short reads onto
// ErrTruncatedStream, leaving io.EOF untouched for callers that use it to
// detect a clean end of input.
func truncatedIf(err error, context string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", context, ErrTruncatedStream)
	}
	return fmt.Errorf("%s: %w", context, err)
}

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
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// defaultCharacterRepertoire is the baseline used when no Specific Character
// Set is declared. Windows-1252 is a superset of the 7-bit default repertoire
// that tolerates the 8-bit bytes common in real-world files.
var defaultCharacterRepertoire encoding.Encoding = charmap.Windows1252

// lookupLabelByTerm is a mapping of specific character set defined terms to golang charset labels.
// See link below for list of character set defined terms.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var lookupLabelByTerm = map[string]string{
	"ISO_IR 100": "iso-ir-100",
	"ISO_IR 101": "iso-ir-101",
	"ISO_IR 109": "iso-ir-109",
	"ISO_IR 110": "iso-ir-110",
	"ISO_IR 144": "iso-ir-144",
	"ISO_IR 127": "iso-ir-127",
	"ISO_IR 126": "iso-ir-126",
	"ISO_IR 138": "iso-ir-138",
	"ISO_IR 148": "iso-ir-148",
	"ISO_IR 13":  "shift-jis",
	"ISO_IR 166": "tis-620",
	"ISO_IR 192": "utf-8",
	"GB18030":    "gb18030",
	"GBK":        "gbk",

	"ISO 2022 IR 6":   "us-ascii",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift-jis",
	"ISO 2022 IR 166": "tis-620",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "iso-ir-149",
	"ISO 2022 IR 58":  "gbk",
}

func lookupEncoding(term string) (encoding.Encoding, error) {
	label, ok := lookupLabelByTerm[term]
	if !ok {
		return nil, fmt.Errorf("specific character set defined term not found: %v", term)
	}

	coding, _ := charset.Lookup(label)
	if coding == nil {
		return nil, fmt.Errorf("missing encoding for label %q", label)
	}
	return coding, nil
}

// escapeToTerm maps an ISO 2022 escape sequence (the bytes following ESC) to
// the defined term it designates. Table derived from PS3.5 section 6.1.2.
var escapeToTerm = map[string]string{
	"(B":  "ISO 2022 IR 6",
	"-A":  "ISO 2022 IR 100",
	"-B":  "ISO 2022 IR 101",
	"-C":  "ISO 2022 IR 109",
	"-D":  "ISO 2022 IR 110",
	"-F":  "ISO 2022 IR 126",
	"-G":  "ISO 2022 IR 127",
	"-H":  "ISO 2022 IR 138",
	"-L":  "ISO 2022 IR 144",
	"-M":  "ISO 2022 IR 148",
	"-T":  "ISO 2022 IR 166",
	"(J":  "ISO 2022 IR 13",
	")I":  "ISO 2022 IR 13",
	"$B":  "ISO 2022 IR 87",
	"$(D": "ISO 2022 IR 159",
	"$)C": "ISO 2022 IR 149",
	"$)A": "ISO 2022 IR 58",
}

// termToEscape is the inverse designation emitted when encoding switches a
// segment into a single-byte extension set. Terms whose encoder emits its own
// escape sequences (iso-2022-jp) are absent.
var termToEscape = map[string]string{
	"ISO 2022 IR 6":   "\x1b(B",
	"ISO 2022 IR 100": "\x1b-A",
	"ISO 2022 IR 101": "\x1b-B",
	"ISO 2022 IR 109": "\x1b-C",
	"ISO 2022 IR 110": "\x1b-D",
	"ISO 2022 IR 126": "\x1b-F",
	"ISO 2022 IR 127": "\x1b-G",
	"ISO 2022 IR 138": "\x1b-H",
	"ISO 2022 IR 144": "\x1b-L",
	"ISO 2022 IR 148": "\x1b-M",
	"ISO 2022 IR 166": "\x1b-T",
	"ISO 2022 IR 13":  "\x1b)I",
	"ISO 2022 IR 149": "\x1b$)C",
	"ISO 2022 IR 58":  "\x1b$)A",
}

// escapeAware terms map to a Go encoding that consumes and emits ISO 2022
// escape sequences itself, so the raw escape bytes are passed through to the
// coder rather than stripped.
func escapeAware(term string) bool {
	return lookupLabelByTerm[term] == "iso-2022-jp"
}

// characterRepertoire translates the declared Specific Character Set of a
// data set. It is immutable once built; decode/encode state (the active code
// element during ISO 2022 switching) lives on the stack of each call, and
// resets at the start of every text component.
type characterRepertoire struct {
	terms       []string
	primaryTerm string
	primary     encoding.Encoding
	extensions  bool
}

// defaultRepertoire decodes with the baseline charset and no code extensions.
var defaultRepertoire = &characterRepertoire{primary: defaultCharacterRepertoire}

// newCharacterRepertoire builds the translator for the value multiplicity of
// a Specific Character Set element. An empty specification yields the
// default repertoire. Value 1 names the primary set active at the start of
// every component; further values declare the sets reachable by escape
// sequences.
func newCharacterRepertoire(terms []string) (*characterRepertoire, error) {
	trimmed := make([]string, 0, len(terms))
	for _, t := range terms {
		trimmed = append(trimmed, strings.TrimSpace(t))
	}
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return defaultRepertoire, nil
	}

	cr := &characterRepertoire{terms: trimmed}
	cr.extensions = len(trimmed) > 1 || strings.HasPrefix(trimmed[0], "ISO 2022")

	cr.primaryTerm = trimmed[0]
	if cr.primaryTerm == "" {
		// Multi-valued specification with an empty first value: the default
		// repertoire is the primary set.
		if cr.extensions {
			cr.primaryTerm = "ISO 2022 IR 6"
		}
		cr.primary = defaultCharacterRepertoire
		return cr, nil
	}

	primary, err := lookupEncoding(cr.primaryTerm)
	if err != nil {
		return nil, err
	}
	cr.primary = primary
	return cr, nil
}

// DecodeValues decodes the value field of a charset-sensitive text VR into
// its values. Splitting on the multi-value delimiter happens on raw bytes:
// 0x5C is reserved in every supported primary set.
func (cr *characterRepertoire) DecodeValues(raw []byte, vr *VR) ([]string, error) {
	if vr.singleValued() {
		s, err := cr.decodeValue(raw)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	parts := bytes.Split(raw, []byte(multiValueDelimiter))
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		s, err := cr.decodeValue(p)
		if err != nil {
			return nil, err
		}
		values = append(values, s)
	}
	return values, nil
}

// decodeValue decodes one value, resetting escape state at each component
// delimiter ('^' caret between name components, '=' between person name
// component groups).
func (cr *characterRepertoire) decodeValue(value []byte) (string, error) {
	var sb strings.Builder
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == '^' || value[i] == '=' {
			s, err := cr.decodeComponent(value[start:i])
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
			sb.WriteByte(value[i])
			start = i + 1
		}
	}
	s, err := cr.decodeComponent(value[start:])
	if err != nil {
		return "", err
	}
	sb.WriteString(s)
	return sb.String(), nil
}

func (cr *characterRepertoire) decodeComponent(seg []byte) (string, error) {
	if !cr.extensions {
		return decodeWith(cr.primary, seg)
	}

	var sb strings.Builder
	activeEnc := cr.primary
	i := 0
	for i < len(seg) {
		j := bytes.IndexByte(seg[i:], 0x1B)
		if j < 0 {
			s, err := decodeWith(activeEnc, seg[i:])
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
			break
		}

		s, err := decodeWith(activeEnc, seg[i:i+j])
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
		i += j

		escLen, term, err := parseEscape(seg[i:])
		if err != nil {
			return "", err
		}
		if !cr.declared(term) {
			logrus.WithField("term", term).Warn("escape to character set not declared in specific character set")
		}
		enc, err := lookupEncoding(term)
		if err != nil {
			return "", fmt.Errorf("%v: %w", err, ErrUndecodableText)
		}

		if escapeAware(term) {
			// The coder interprets ISO 2022 escapes itself. Hand it the run
			// from this escape up to the next one.
			end := len(seg)
			if k := bytes.IndexByte(seg[i+escLen:], 0x1B); k >= 0 {
				end = i + escLen + k
			}
			s, err := decodeWith(enc, seg[i:end])
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
			i = end
			activeEnc = cr.primary
			continue
		}

		activeEnc = enc
		i += escLen
	}
	return sb.String(), nil
}

// parseEscape parses an ISO 2022 escape sequence starting at the ESC byte:
// zero or more intermediate bytes in 0x20..0x2F followed by a final byte in
// 0x30..0x7E. It returns the total sequence length including ESC and the
// designated defined term.
func parseEscape(b []byte) (int, string, error) {
	if len(b) == 0 || b[0] != 0x1B {
		return 0, "", fmt.Errorf("not an escape sequence: %w", ErrUndecodableText)
	}
	i := 1
	for i < len(b) && b[i] >= 0x20 && b[i] <= 0x2F {
		i++
	}
	if i >= len(b) || b[i] < 0x30 || b[i] > 0x7E {
		return 0, "", fmt.Errorf("unterminated escape sequence: %w", ErrUndecodableText)
	}
	seq := string(b[1 : i+1])
	term, ok := escapeToTerm[seq]
	if !ok {
		return 0, "", fmt.Errorf("unrecognized escape sequence %q: %w", seq, ErrUndecodableText)
	}
	return i + 1, term, nil
}

func (cr *characterRepertoire) declared(term string) bool {
	for _, t := range cr.terms {
		if t == term {
			return true
		}
	}
	// The default G0 set is always reachable.
	return term == "ISO 2022 IR 6"
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if enc == nil {
		return string(b), nil
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding %q: %w", b, ErrUndecodableText)
	}
	return string(decoded), nil
}

// EncodeValues is the inverse of DecodeValues: it re-emits escape sequences
// as needed and fails with ErrUnencodableText when a character cannot be
// represented in any declared set.
func (cr *characterRepertoire) EncodeValues(values []string, vr *VR) ([]byte, error) {
	if vr.singleValued() && len(values) > 1 {
		return nil, fmt.Errorf("VR %s holds a single value, got %d", vr.Name, len(values))
	}

	var buff bytes.Buffer
	for i, v := range values {
		if i > 0 {
			buff.WriteString(multiValueDelimiter)
		}
		b, err := cr.encodeValue(v)
		if err != nil {
			return nil, err
		}
		buff.Write(b)
	}
	return buff.Bytes(), nil
}

func (cr *characterRepertoire) encodeValue(value string) ([]byte, error) {
	var buff bytes.Buffer
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == '^' || value[i] == '=' {
			if err := cr.encodeComponent(&buff, value[start:i]); err != nil {
				return nil, err
			}
			buff.WriteByte(value[i])
			start = i + 1
		}
	}
	if err := cr.encodeComponent(&buff, value[start:]); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func (cr *characterRepertoire) encodeComponent(buff *bytes.Buffer, s string) error {
	if s == "" {
		return nil
	}
	if isASCII(s) {
		buff.WriteString(s)
		return nil
	}

	if b, err := encodeWith(cr.primary, s); err == nil {
		buff.Write(b)
		return nil
	}

	for _, term := range cr.terms {
		if term == "" || term == cr.primaryTerm {
			continue
		}
		enc, err := lookupEncoding(term)
		if err != nil {
			continue
		}
		b, err := encodeWith(enc, s)
		if err != nil {
			continue
		}
		if esc, ok := termToEscape[term]; ok && !escapeAware(term) {
			buff.WriteString(esc)
		}
		buff.Write(b)
		return nil
	}

	return fmt.Errorf("%q not representable in declared character sets: %w", s, ErrUnencodableText)
}

func encodeWith(enc encoding.Encoding, s string) ([]byte, error) {
	if enc == nil {
		return []byte(s), nil
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || s[i] == 0x1B {
			return false
		}
	}
	return true
}

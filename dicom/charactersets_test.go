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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValues(t *testing.T) {
	testCases := []struct {
		name  string
		terms []string
		raw   []byte
		vr    *VR
		want  []string
	}{
		{
			"default repertoire passes ASCII through",
			nil,
			[]byte("Doe^John"),
			PNVR,
			[]string{"Doe^John"},
		},
		{
			"latin-1 single byte accents",
			[]string{"ISO_IR 100"},
			[]byte("M\xfcller"),
			PNVR,
			[]string{"Müller"},
		},
		{
			"utf-8 repertoire",
			[]string{"ISO_IR 192"},
			[]byte("山田^太郎"),
			PNVR,
			[]string{"山田^太郎"},
		},
		{
			"multi-valued split happens on raw bytes",
			[]string{"ISO_IR 100"},
			[]byte("AX\\S\xe9"),
			SHVR,
			[]string{"AX", "Sé"},
		},
		{
			"backslash is data in single valued VRs",
			[]string{"ISO_IR 100"},
			[]byte(`C:\dir`),
			STVR,
			[]string{`C:\dir`},
		},
		{
			"iso 2022 escape to japanese",
			[]string{"", "ISO 2022 IR 87"},
			[]byte("Yamada^\x1b$B;3ED\x1b(B"),
			PNVR,
			[]string{"Yamada^山田"},
		},
		{
			"iso 2022 escape to cyrillic extension",
			[]string{"ISO 2022 IR 6", "ISO 2022 IR 144"},
			[]byte{0x1B, '-', 'L', 0xB2, 0xDE, 0xD4},
			PNVR,
			[]string{"Вод"},
		},
		{
			"escape state resets at component delimiter",
			[]string{"ISO 2022 IR 6", "ISO 2022 IR 144"},
			concat([]byte{0x1B, '-', 'L', 0xB2}, []byte("^Smith")),
			PNVR,
			[]string{"В^Smith"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repertoire, err := newCharacterRepertoire(tc.terms)
			require.NoError(t, err)

			got, err := repertoire.DecodeValues(tc.raw, tc.vr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeValues_errors(t *testing.T) {
	repertoire, err := newCharacterRepertoire([]string{"ISO 2022 IR 6", "ISO 2022 IR 144"})
	require.NoError(t, err)

	t.Run("unrecognized escape sequence", func(t *testing.T) {
		_, err := repertoire.DecodeValues([]byte{0x1B, '%', 'G'}, PNVR)
		assert.ErrorIs(t, err, ErrUndecodableText)
	})

	t.Run("unterminated escape sequence", func(t *testing.T) {
		_, err := repertoire.DecodeValues([]byte{0x1B}, PNVR)
		assert.ErrorIs(t, err, ErrUndecodableText)
	})
}

func TestEncodeValues(t *testing.T) {
	testCases := []struct {
		name   string
		terms  []string
		values []string
		vr     *VR
		want   []byte
	}{
		{
			"ascii needs no translation",
			[]string{"ISO_IR 100"},
			[]string{"Doe^John"},
			PNVR,
			[]byte("Doe^John"),
		},
		{
			"latin-1 accents",
			[]string{"ISO_IR 100"},
			[]string{"Müller"},
			PNVR,
			[]byte("M\xfcller"),
		},
		{
			"utf-8 repertoire",
			[]string{"ISO_IR 192"},
			[]string{"山田^太郎"},
			PNVR,
			[]byte("山田^太郎"),
		},
		{
			"multi-valued joined with backslash",
			[]string{"ISO_IR 100"},
			[]string{"AX", "Sé"},
			SHVR,
			[]byte("AX\\S\xe9"),
		},
		{
			"escape emitted for extension set",
			[]string{"ISO 2022 IR 6", "ISO 2022 IR 144"},
			[]string{"Вод"},
			PNVR,
			[]byte{0x1B, '-', 'L', 0xB2, 0xDE, 0xD4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repertoire, err := newCharacterRepertoire(tc.terms)
			require.NoError(t, err)

			got, err := repertoire.EncodeValues(tc.values, tc.vr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeValues_errors(t *testing.T) {
	t.Run("unencodable in declared sets", func(t *testing.T) {
		_, err := defaultRepertoire.EncodeValues([]string{"山田"}, PNVR)
		assert.ErrorIs(t, err, ErrUnencodableText)
	})

	t.Run("multiple values in single valued VR", func(t *testing.T) {
		_, err := defaultRepertoire.EncodeValues([]string{"a", "b"}, UTVR)
		assert.Error(t, err)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		terms []string
		value string
	}{
		{"latin-1", []string{"ISO_IR 100"}, "Dupont^René"},
		{"utf-8", []string{"ISO_IR 192"}, "山田^太郎=やまだ^たろう"},
		{"iso 2022 cyrillic", []string{"ISO 2022 IR 6", "ISO 2022 IR 144"}, "Водичка^Anna"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repertoire, err := newCharacterRepertoire(tc.terms)
			require.NoError(t, err)

			encoded, err := repertoire.EncodeValues([]string{tc.value}, PNVR)
			require.NoError(t, err)
			decoded, err := repertoire.DecodeValues(encoded, PNVR)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.value}, decoded)
		})
	}
}

func TestNewCharacterRepertoire(t *testing.T) {
	t.Run("empty terms give the default repertoire", func(t *testing.T) {
		repertoire, err := newCharacterRepertoire(nil)
		require.NoError(t, err)
		assert.Same(t, defaultRepertoire, repertoire)
	})

	t.Run("unknown term is rejected", func(t *testing.T) {
		_, err := newCharacterRepertoire([]string{"KLINGON"})
		assert.Error(t, err)
	})

	t.Run("empty first value of multi-valued specification", func(t *testing.T) {
		repertoire, err := newCharacterRepertoire([]string{"", "ISO 2022 IR 87"})
		require.NoError(t, err)
		assert.True(t, repertoire.extensions)
		assert.Equal(t, "ISO 2022 IR 6", repertoire.primaryTerm)
	})
}

// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jsonw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"
)

// countingWriter records how many Write calls reach the destination.
type countingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return c.buf.Write(p)
}

// encodeString runs a single string value through a fresh Writer.
func encodeString(t *testing.T, s string, opts ...Option) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, opts...)
	if err := w.String(s); err != nil {
		t.Fatalf("String(%q): %v", s, err)
	}
	return buf.String()
}

// TestEscapeShorthands verifies the five two-character escapes and the quote
// and backslash pairs.
func TestEscapeShorthands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\tb\"c", `"a\tb\"c"`},
		{"line1\nline2", `"line1\nline2"`},
		{"back\\slash", `"back\\slash"`},
		{"\b\f\r", `"\b\f\r"`},
		{`plain text`, `"plain text"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := encodeString(t, tt.in); got != tt.want {
			t.Fatalf("encode %q = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// TestControlByteRoundTrip encodes every control byte plus DEL and decodes
// the literal with encoding/json, expecting the original byte back.
func TestControlByteRoundTrip(t *testing.T) {
	for c := 0; c <= 31; c++ {
		assertByteRoundTrips(t, byte(c))
	}
	assertByteRoundTrips(t, 127)
}

func assertByteRoundTrips(t *testing.T, c byte) {
	t.Helper()
	in := fmt.Sprintf("pre%spost", string(rune(c)))
	encoded := encodeString(t, in)

	var decoded string
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("byte 0x%02x: decoding %s: %v", c, encoded, err)
	}
	if decoded != in {
		t.Fatalf("byte 0x%02x: round trip = %q, want %q", c, decoded, in)
	}
}

// TestGenericUnicodeEscapeForm checks the \u00XX form and lowercase hex
// digits for control bytes without a shorthand.
func TestGenericUnicodeEscapeForm(t *testing.T) {
	tests := []struct {
		c    byte
		want string
	}{
		{0x00, `"\u0000"`},
		{0x01, `"\u0001"`},
		{0x0b, `"\u000b"`},
		{0x1f, `"\u001f"`},
		{0x7f, `"\u007f"`},
	}
	for _, tt := range tests {
		if got := encodeString(t, string(rune(tt.c))); got != tt.want {
			t.Fatalf("byte 0x%02x = %s, want %s", tt.c, got, tt.want)
		}
	}
}

// TestQuoteAndBackslashRoundTrip round-trips strings dense with the escape
// characters themselves.
func TestQuoteAndBackslashRoundTrip(t *testing.T) {
	inputs := []string{
		`"`, `\`, `\\`, `"""`, `a"b\c"d`, `\"`, `end\`,
	}
	for _, in := range inputs {
		encoded := encodeString(t, in)
		var decoded string
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			t.Fatalf("decoding %s: %v", encoded, err)
		}
		if decoded != in {
			t.Fatalf("round trip %q = %q", in, decoded)
		}
	}
}

// TestHighBytesPassThrough verifies bytes above the control range are left
// untouched, including valid UTF-8 sequences and the high-bit range.
func TestHighBytesPassThrough(t *testing.T) {
	in := "héllo ✓    日本語"
	want := `"` + in + `"`
	if got := encodeString(t, in); got != want {
		t.Fatalf("high bytes = %q, want %q", got, want)
	}

	// A lone 0x80 byte is not valid UTF-8 but must still pass through.
	raw := []byte{'a', 0x80, 'b'}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.StringBytes(raw); err != nil {
		t.Fatalf("StringBytes: %v", err)
	}
	if got, want := buf.Bytes(), append(append([]byte{'"'}, raw...), '"'); !bytes.Equal(got, want) {
		t.Fatalf("raw high byte output = %q, want %q", got, want)
	}
}

// TestHTMLEscapingOption checks the opt-in escaping of <, >, and & and that
// it stays off by default.
func TestHTMLEscapingOption(t *testing.T) {
	in := `<a href="x">&amp;</a>`

	plain := encodeString(t, in)
	if plain != `"<a href=\"x\">&amp;</a>"` {
		t.Fatalf("default encoding = %s", plain)
	}

	escaped := encodeString(t, in, WithHTMLEscaping(true))
	want := `"\u003ca href=\"x\"\u003e\u0026amp;\u003c/a\u003e"`
	if escaped != want {
		t.Fatalf("html-escaped encoding = %s, want %s", escaped, want)
	}

	var decoded string
	if err := json.Unmarshal([]byte(escaped), &decoded); err != nil {
		t.Fatalf("decoding html-escaped form: %v", err)
	}
	if decoded != in {
		t.Fatalf("html-escaped round trip = %q, want %q", decoded, in)
	}
}

// TestRunBatchedWrites asserts the scan flushes runs rather than writing one
// byte at a time: a string with a single interior escape needs at most the
// opening quote, leading run, escape, trailing run, and closing quote.
func TestRunBatchedWrites(t *testing.T) {
	cw := &countingWriter{}
	w := NewWriter(cw)
	if err := w.String("aaaaaaaa\nbbbbbbbb"); err != nil {
		t.Fatalf("String: %v", err)
	}
	if cw.writes > 5 {
		t.Fatalf("write count = %d, want ≤ 5 (runs must be batched)", cw.writes)
	}
	if got, want := cw.buf.String(), `"aaaaaaaa\nbbbbbbbb"`; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

// TestEscapeWriteFailure confirms a failing destination surfaces mid-string
// without masking the sink error.
func TestEscapeWriteFailure(t *testing.T) {
	w := NewWriter(failingWriter{err: io.ErrClosedPipe})
	if err := w.String("abc"); err != io.ErrClosedPipe {
		t.Fatalf("String on failing sink = %v, want io.ErrClosedPipe", err)
	}
}

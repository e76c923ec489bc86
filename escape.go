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

import "io"

const hexDigits = "0123456789abcdef"

// needsEscape reports whether c terminates the current unescaped run.
// Bytes above the control range, including anything with the high bit set,
// pass through unexamined.
func (w *Writer) needsEscape(c byte) bool {
	if c == '"' || c == '\\' || c <= 31 || c == 127 {
		return true
	}
	if w.escapeHTML && (c == '<' || c == '>' || c == '&') {
		return true
	}
	return false
}

// writeEscape emits the escape sequence for a single special byte: the
// two-character shorthand where JSON defines one, \uXXXX otherwise.
func (w *Writer) writeEscape(c byte) error {
	switch c {
	case '"':
		return w.writeRaw(`\"`)
	case '\\':
		return w.writeRaw(`\\`)
	case '\b':
		return w.writeRaw(`\b`)
	case '\f':
		return w.writeRaw(`\f`)
	case '\n':
		return w.writeRaw(`\n`)
	case '\r':
		return w.writeRaw(`\r`)
	case '\t':
		return w.writeRaw(`\t`)
	default:
		esc := [6]byte{'\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF]}
		_, err := w.w.Write(esc[:])
		return err
	}
}

// writeString emits s as a quoted JSON string literal. The scan is a single
// left-to-right pass that accumulates runs of ordinary bytes and flushes a
// pending run only when a special byte interrupts it, so the cost per special
// byte is one run write plus one escape write rather than one write per byte.
func (w *Writer) writeString(s string) error {
	if err := w.writeRaw(`"`); err != nil {
		return err
	}
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !w.needsEscape(c) {
			continue
		}
		if start < i {
			if _, err := io.WriteString(w.w, s[start:i]); err != nil {
				return err
			}
		}
		if err := w.writeEscape(c); err != nil {
			return err
		}
		start = i + 1
	}
	if start < len(s) {
		if _, err := io.WriteString(w.w, s[start:]); err != nil {
			return err
		}
	}
	return w.writeRaw(`"`)
}

// writeStringBytes is writeString for byte slices, kept separate so callers
// holding raw buffers avoid a string conversion.
func (w *Writer) writeStringBytes(b []byte) error {
	if err := w.writeRaw(`"`); err != nil {
		return err
	}
	start := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		if !w.needsEscape(c) {
			continue
		}
		if start < i {
			if _, err := w.w.Write(b[start:i]); err != nil {
				return err
			}
		}
		if err := w.writeEscape(c); err != nil {
			return err
		}
		start = i + 1
	}
	if start < len(b) {
		if _, err := w.w.Write(b[start:]); err != nil {
			return err
		}
	}
	return w.writeRaw(`"`)
}

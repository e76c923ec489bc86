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
	"io"
	"strconv"
)

// sepStatus records what the previously emitted token was. The three states
// have distinct transition rules: sepNone suppresses both the comma and the
// indentation (the token immediately follows a member name on the same line),
// sepFirst suppresses only the comma (first element of a container still
// starts on its own indented line), and sepNext triggers both.
type sepStatus uint8

const (
	sepNone sepStatus = iota
	sepFirst
	sepNext
)

// Writer is a streaming, forward-only JSON encoder. It serializes a sequence
// of primitive write calls into syntactically valid JSON, emitting output
// incrementally to the destination writer rather than building an in-memory
// tree.
//
// The Writer trusts its caller: it performs no validation of call ordering,
// so unbalanced Begin/End calls or a value written where a name was expected
// produce malformed output rather than an error. Errors returned by any
// method are the destination writer's own errors, propagated unmodified.
//
// A Writer is bound to one destination and one indent width for its entire
// lifetime and is not safe for concurrent use.
type Writer struct {
	w      io.Writer
	indent int
	level  int
	sep    sepStatus

	escapeHTML bool
}

// NewWriter returns a Writer emitting to w. By default output is compact:
// no newlines, no indentation, and no space after the name separator.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	jw := &Writer{w: w}
	for _, opt := range opts {
		if opt != nil {
			opt(jw)
		}
	}
	return jw
}

// BeginObject emits "{" and opens a new nesting level.
func (w *Writer) BeginObject() error { return w.beginContainer("{") }

// EndObject closes the current nesting level and emits "}". The caller must
// pair it with an earlier BeginObject at the same level.
func (w *Writer) EndObject() error { return w.endContainer("}") }

// BeginArray emits "[" and opens a new nesting level.
func (w *Writer) BeginArray() error { return w.beginContainer("[") }

// EndArray closes the current nesting level and emits "]". The caller must
// pair it with an earlier BeginArray at the same level.
func (w *Writer) EndArray() error { return w.endContainer("]") }

// Name writes an object member name followed by the name separator
// (": " when pretty-printing, ":" otherwise). The value written next is
// placed on the same line with no comma between name and value.
func (w *Writer) Name(name string) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeString(name); err != nil {
		return err
	}
	sep := ":"
	if w.indent > 0 {
		sep = ": "
	}
	if err := w.writeRaw(sep); err != nil {
		return err
	}
	w.sep = sepNone
	return nil
}

// NameBytes writes an object member name from a raw byte slice. It is
// equivalent to Name and exists to avoid a string conversion when the name
// already lives in a byte buffer.
func (w *Writer) NameBytes(name []byte) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeStringBytes(name); err != nil {
		return err
	}
	sep := ":"
	if w.indent > 0 {
		sep = ": "
	}
	if err := w.writeRaw(sep); err != nil {
		return err
	}
	w.sep = sepNone
	return nil
}

// String writes a quoted, escaped string value.
func (w *Writer) String(s string) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeString(s); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// StringBytes writes a quoted, escaped string value from a raw byte slice.
// Bytes above the control range are passed through unexamined, so the result
// is valid JSON only when the input is valid UTF-8.
func (w *Writer) StringBytes(b []byte) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeStringBytes(b); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// Int writes a signed integer value in decimal form.
func (w *Writer) Int(n int64) error {
	var buf [20]byte
	return w.scalar(strconv.AppendInt(buf[:0], n, 10))
}

// Uint writes an unsigned integer value in decimal form.
func (w *Writer) Uint(n uint64) error {
	var buf [20]byte
	return w.scalar(strconv.AppendUint(buf[:0], n, 10))
}

// Float64 writes a floating point value using the shortest decimal
// representation that round-trips. NaN and the infinities have no JSON
// representation and are written as strconv renders them (NaN, +Inf, -Inf),
// which is not valid JSON; callers accepting untrusted floats must reject
// non-finite values before calling.
func (w *Writer) Float64(f float64) error {
	var buf [32]byte
	return w.scalar(strconv.AppendFloat(buf[:0], f, 'f', -1, 64))
}

// Bool writes the literal true or false.
func (w *Writer) Bool(b bool) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	lit := "false"
	if b {
		lit = "true"
	}
	if err := w.writeRaw(lit); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// Null writes the literal null.
func (w *Writer) Null() error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeRaw("null"); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// Raw writes pre-encoded JSON as a value. The bytes are emitted untouched
// after the usual separator logic; the caller is responsible for their
// validity.
func (w *Writer) Raw(data []byte) error {
	return w.scalar(data)
}

// beginContainer emits an opening delimiter and enters the container.
func (w *Writer) beginContainer(open string) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if err := w.writeRaw(open); err != nil {
		return err
	}
	w.sep = sepFirst
	w.level++
	return nil
}

// endContainer leaves the container and emits a closing delimiter. A
// container never has a trailing comma before its own close, so only the
// indentation step runs here.
func (w *Writer) endContainer(close string) error {
	w.level--
	if err := w.writeIndent(); err != nil {
		return err
	}
	if err := w.writeRaw(close); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// scalar emits a textual value after the separator prefix.
func (w *Writer) scalar(text []byte) error {
	if err := w.valueSep(); err != nil {
		return err
	}
	if _, err := w.w.Write(text); err != nil {
		return err
	}
	w.sep = sepNext
	return nil
}

// valueSep emits the separator-and-indent prefix that precedes every token
// except a container's own closing delimiter.
func (w *Writer) valueSep() error {
	if w.sep == sepNext {
		if err := w.writeRaw(","); err != nil {
			return err
		}
	}
	return w.writeIndent()
}

// indentPad supplies indentation in chunks so deep nesting does not turn
// into one write per space.
const indentPad = "                                                                "

// writeIndent emits a newline plus level×indent spaces when pretty-printing
// is enabled and the previous token was not a member name.
func (w *Writer) writeIndent() error {
	if w.indent == 0 || w.sep == sepNone {
		return nil
	}
	if err := w.writeRaw("\n"); err != nil {
		return err
	}
	n := w.level * w.indent
	for n > 0 {
		chunk := n
		if chunk > len(indentPad) {
			chunk = len(indentPad)
		}
		if err := w.writeRaw(indentPad[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// writeRaw forwards a literal fragment to the destination.
func (w *Writer) writeRaw(s string) error {
	_, err := io.WriteString(w.w, s)
	return err
}

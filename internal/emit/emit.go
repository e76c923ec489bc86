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

// Package emit serializes concurrent JSON line output onto a shared writer.
// Each call renders one object into a pooled buffer and writes it with a
// single Write under a mutex, so lines from concurrent goroutines never
// interleave.
package emit

import (
	"bytes"
	"io"
	"sync"

	"github.com/pjscruggs/jsonw"
)

var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Emitter writes newline-delimited JSON objects to a destination.
type Emitter struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns an Emitter writing to w.
func New(w io.Writer) *Emitter {
	return &Emitter{out: w}
}

// Emit renders one object with build and writes it followed by a newline.
// The encoder given to build targets an in-memory buffer, so build does not
// need to check the encoder's intermediate errors; the returned error is the
// destination writer's, unmodified.
func (e *Emitter) Emit(build func(w *jsonw.Writer)) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	build(jsonw.NewWriter(buf))
	buf.WriteByte('\n')

	e.mu.Lock()
	_, err := e.out.Write(buf.Bytes())
	e.mu.Unlock()
	return err
}

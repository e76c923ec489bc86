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

package jsonwslog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pjscruggs/jsonw"
	"github.com/pjscruggs/jsonw/internal/runtimeinfo"
)

var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// attrOp is one step of the preformatted attribute sequence accumulated by
// WithAttrs and WithGroup. Exactly one of group or attr is meaningful.
type attrOp struct {
	group string
	attr  slog.Attr
}

// Handler renders slog records as JSON lines through the streaming encoder.
// Clones created by WithAttrs and WithGroup share the destination writer and
// its mutex with the parent.
type Handler struct {
	cfg *config
	mu  *sync.Mutex
	out io.Writer

	// ops replays WithGroup/WithAttrs history before each record's own
	// attributes; groups open lazily so empty ones are elided.
	ops []attrOp

	traceProject string
	service      runtimeinfo.Info
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler returns a Handler writing JSON lines to w.
func NewHandler(w io.Writer, opts ...Option) *Handler {
	cfg := applyOptions(opts)
	h := &Handler{
		cfg:          cfg,
		mu:           &sync.Mutex{},
		out:          w,
		traceProject: cfg.traceProject,
	}
	if cfg.serviceContext {
		h.service = runtimeinfo.Detect()
		if h.traceProject == "" {
			h.traceProject = h.service.ProjectID
		}
	}
	return h
}

// Enabled reports whether level is enabled for emission.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

// WithAttrs returns a handler that includes attrs on every emitted record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	ops := make([]attrOp, len(h.ops), len(h.ops)+len(attrs))
	copy(ops, h.ops)
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		a.Value = a.Value.Resolve()
		ops = append(ops, attrOp{attr: a})
	}
	return h.clone(ops)
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	ops := make([]attrOp, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	ops = append(ops, attrOp{group: name})
	return h.clone(ops)
}

// clone shares everything but the op sequence.
func (h *Handler) clone(ops []attrOp) *Handler {
	return &Handler{
		cfg:          h.cfg,
		mu:           h.mu,
		out:          h.out,
		ops:          ops,
		traceProject: h.traceProject,
		service:      h.service,
	}
}

// Handle streams r as one JSON object followed by a newline. The record is
// rendered into a pooled buffer and written to the destination in a single
// call under the handler mutex, so concurrent records never interleave.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	// Buffer writes cannot fail, so intermediate encoder errors are not
	// checked; the only fallible step is the final write to the destination.
	w := jsonw.NewWriter(buf,
		jsonw.WithIndent(h.cfg.indent),
		jsonw.WithHTMLEscaping(h.cfg.htmlEscape),
	)

	w.BeginObject()
	h.writeBuiltins(w, r)

	writeTraceFields(w, ctx, h.traceProject)
	h.writeServiceContext(w)

	st := emitState{w: w, replace: h.cfg.replaceAttr}
	for _, op := range h.ops {
		if op.group != "" {
			st.pushGroup(op.group)
			continue
		}
		st.appendAttr(op.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		st.appendAttr(a)
		return true
	})
	st.closeOpened()
	w.EndObject()
	buf.WriteByte('\n')

	h.mu.Lock()
	_, err := h.out.Write(buf.Bytes())
	h.mu.Unlock()
	return err
}

// writeBuiltins emits the time, level, optional source, and msg members.
// Like slog.JSONHandler, a configured ReplaceAttr hook sees the built-ins
// too (with a nil group path), so it can rewrite or drop them; without a
// hook they are streamed directly.
func (h *Handler) writeBuiltins(w *jsonw.Writer, r slog.Record) {
	if h.cfg.replaceAttr == nil {
		if !r.Time.IsZero() {
			w.Name(slog.TimeKey)
			w.String(r.Time.Format(time.RFC3339Nano))
		}
		w.Name(slog.LevelKey)
		w.String(r.Level.String())
		if h.cfg.addSource {
			writeSource(w, r)
		}
		w.Name(slog.MessageKey)
		w.String(r.Message)
		return
	}

	st := emitState{w: w, replace: h.cfg.replaceAttr}
	if !r.Time.IsZero() {
		st.appendAttr(slog.Time(slog.TimeKey, r.Time))
	}
	st.appendAttr(slog.Any(slog.LevelKey, r.Level))
	if h.cfg.addSource {
		if src := recordSource(r); src != nil {
			st.appendAttr(slog.Any(slog.SourceKey, src))
		}
	}
	st.appendAttr(slog.String(slog.MessageKey, r.Message))
}

// writeServiceContext emits the detected service identity, if any.
func (h *Handler) writeServiceContext(w *jsonw.Writer) {
	if !h.cfg.serviceContext || h.service.Service == "" {
		return
	}
	w.Name("serviceContext")
	w.BeginObject()
	w.Name("service")
	w.String(h.service.Service)
	if h.service.Version != "" {
		w.Name("version")
		w.String(h.service.Version)
	}
	w.EndObject()
}

// recordSource resolves the record's call site, or nil when unavailable.
func recordSource(r slog.Record) *slog.Source {
	if r.PC == 0 {
		return nil
	}
	frames := runtime.CallersFrames([]uintptr{r.PC})
	frame, _ := frames.Next()
	if frame.Function == "" && frame.File == "" {
		return nil
	}
	return &slog.Source{Function: frame.Function, File: frame.File, Line: frame.Line}
}

// writeSource emits the call site under the standard source key.
func writeSource(w *jsonw.Writer, r slog.Record) {
	src := recordSource(r)
	if src == nil {
		return
	}
	w.Name(slog.SourceKey)
	w.BeginObject()
	w.Name("function")
	w.String(src.Function)
	w.Name("file")
	w.String(src.File)
	w.Name("line")
	w.Int(int64(src.Line))
	w.EndObject()
}

// emitState tracks lazily opened groups while attributes stream out.
// Groups announced by pushGroup stay pending until an attribute actually
// lands inside them; a record that never touches a pending group emits no
// empty object for it.
type emitState struct {
	w       *jsonw.Writer
	replace func(groups []string, a slog.Attr) slog.Attr

	pending []string
	opened  int
	path    []string
}

func (s *emitState) pushGroup(name string) {
	s.pending = append(s.pending, name)
	s.path = append(s.path, name)
}

// openPending opens all announced groups so the next member lands in the
// innermost one.
func (s *emitState) openPending() {
	for _, g := range s.pending {
		s.w.Name(g)
		s.w.BeginObject()
		s.opened++
	}
	s.pending = s.pending[:0]
}

// closeOpened closes every group that was actually opened.
func (s *emitState) closeOpened() {
	for i := 0; i < s.opened; i++ {
		s.w.EndObject()
	}
	s.opened = 0
	s.pending = s.pending[:0]
}

// appendAttr resolves, rewrites, and streams one attribute.
func (s *emitState) appendAttr(a slog.Attr) {
	a.Value = a.Value.Resolve()
	if s.replace != nil && a.Value.Kind() != slog.KindGroup {
		a = s.replace(s.path, a)
		a.Value = a.Value.Resolve()
	}
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		if a.Key == "" {
			// Inline group: children land in the enclosing object.
			for _, ga := range attrs {
				s.appendAttr(ga)
			}
			return
		}
		s.openPending()
		s.w.Name(a.Key)
		s.w.BeginObject()
		s.path = append(s.path, a.Key)
		for _, ga := range attrs {
			s.appendAttr(ga)
		}
		s.path = s.path[:len(s.path)-1]
		s.w.EndObject()
		return
	}

	if a.Key == "" {
		return
	}
	s.openPending()
	s.w.Name(a.Key)
	s.appendValue(a.Value)
}

// appendValue maps a resolved slog.Value onto the encoder's scalar calls.
func (s *emitState) appendValue(v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		s.w.String(v.String())
	case slog.KindInt64:
		s.w.Int(v.Int64())
	case slog.KindUint64:
		s.w.Uint(v.Uint64())
	case slog.KindFloat64:
		f := v.Float64()
		// NaN and the infinities have no JSON representation; letting them
		// through would corrupt the whole line for downstream decoders.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			s.w.String("!ERROR:unsupported value: " + strconv.FormatFloat(f, 'g', -1, 64))
			return
		}
		s.w.Float64(f)
	case slog.KindBool:
		s.w.Bool(v.Bool())
	case slog.KindDuration:
		s.w.Int(int64(v.Duration()))
	case slog.KindTime:
		s.w.String(v.Time().Format(time.RFC3339Nano))
	default:
		s.appendAny(v.Any())
	}
}

// appendAny handles KindAny values: errors and Stringers render as strings,
// nil as null, and everything else is marshaled with encoding/json and
// spliced in as raw bytes.
func (s *emitState) appendAny(val any) {
	switch v := val.(type) {
	case nil:
		s.w.Null()
	case error:
		s.w.String(v.Error())
	case fmt.Stringer:
		s.w.String(v.String())
	default:
		data, err := json.Marshal(v)
		if err != nil {
			s.w.String("!ERROR:" + err.Error())
			return
		}
		s.w.Raw(data)
	}
}

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
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// decodeLine unmarshals a single emitted record.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSuffix(buf.String(), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("decoding record %q: %v", line, err)
	}
	return m
}

// TestHandleBasicRecord checks the built-in keys and scalar attribute kinds.
func TestHandleBasicRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf))

	logger.Info("rebuild complete",
		slog.String("index", "users"),
		slog.Int("docs", 42),
		slog.Float64("ratio", 0.5),
		slog.Bool("full", true),
		slog.Duration("took", 1500*time.Millisecond),
	)

	m := decodeLine(t, &buf)
	if m[slog.MessageKey] != "rebuild complete" {
		t.Fatalf("msg = %v", m[slog.MessageKey])
	}
	if m[slog.LevelKey] != "INFO" {
		t.Fatalf("level = %v", m[slog.LevelKey])
	}
	if _, ok := m[slog.TimeKey].(string); !ok {
		t.Fatalf("time missing or not a string: %v", m[slog.TimeKey])
	}
	if m["index"] != "users" || m["docs"] != float64(42) || m["ratio"] != 0.5 || m["full"] != true {
		t.Fatalf("attrs = %v", m)
	}
	if m["took"] != float64(1500*time.Millisecond) {
		t.Fatalf("duration = %v, want nanoseconds", m["took"])
	}
}

// TestEnabledRespectsLevel covers the static and dynamic level paths.
func TestEnabledRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	logger := slog.New(NewHandler(&buf, WithLevel(lv)))

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted below level: %q", buf.String())
	}

	lv.Set(slog.LevelDebug)
	logger.Debug("kept")
	if buf.Len() == 0 {
		t.Fatal("debug record not emitted after lowering level")
	}
}

// TestWithGroupNesting verifies group nesting and that record attributes land
// in the innermost group.
func TestWithGroupNesting(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf)).WithGroup("req").With("id", "abc")

	logger.Info("done", slog.Int("status", 200))

	m := decodeLine(t, &buf)
	req, ok := m["req"].(map[string]any)
	if !ok {
		t.Fatalf("req group missing: %v", m)
	}
	if req["id"] != "abc" || req["status"] != float64(200) {
		t.Fatalf("req group = %v", req)
	}
}

// TestEmptyGroupElided ensures a WithGroup scope that never receives an
// attribute emits no empty object.
func TestEmptyGroupElided(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf)).WithGroup("empty")

	logger.Info("bare")

	m := decodeLine(t, &buf)
	if _, ok := m["empty"]; ok {
		t.Fatalf("empty group was emitted: %v", m)
	}
}

// TestGroupAttrValue covers slog.Group values, including inline groups with
// empty keys.
func TestGroupAttrValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf))

	logger.Info("msg",
		slog.Group("db", slog.String("name", "orders"), slog.Int("conns", 3)),
		slog.Group("", slog.String("inline", "yes")),
	)

	m := decodeLine(t, &buf)
	db, ok := m["db"].(map[string]any)
	if !ok || db["name"] != "orders" || db["conns"] != float64(3) {
		t.Fatalf("db group = %v", m["db"])
	}
	if m["inline"] != "yes" {
		t.Fatalf("inline group member = %v", m["inline"])
	}
}

// TestReplaceAttrHook checks rewriting and dropping attributes along with the
// group path argument.
func TestReplaceAttrHook(t *testing.T) {
	var buf bytes.Buffer
	var sawGroups []string
	h := NewHandler(&buf, WithReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "secret" {
			return slog.Attr{}
		}
		if a.Key == "token" {
			sawGroups = append([]string(nil), groups...)
			return slog.String("token", "[redacted]")
		}
		return a
	}))
	logger := slog.New(h).WithGroup("auth")

	logger.Info("login", slog.String("secret", "hunter2"), slog.String("token", "tk-1"))

	m := decodeLine(t, &buf)
	auth, ok := m["auth"].(map[string]any)
	if !ok {
		t.Fatalf("auth group missing: %v", m)
	}
	if _, ok := auth["secret"]; ok {
		t.Fatalf("dropped attr still present: %v", auth)
	}
	if auth["token"] != "[redacted]" {
		t.Fatalf("token = %v", auth["token"])
	}
	if len(sawGroups) != 1 || sawGroups[0] != "auth" {
		t.Fatalf("ReplaceAttr groups = %v, want [auth]", sawGroups)
	}
}

// TestNonFiniteFloats ensures NaN and infinite attribute values cannot
// corrupt the emitted line; they surface as error markers instead.
func TestNonFiniteFloats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf))

	logger.Info("measurements",
		slog.Float64("nan", math.NaN()),
		slog.Float64("posinf", math.Inf(1)),
		slog.Float64("neginf", math.Inf(-1)),
		slog.Float64("ok", 1.5),
	)

	line := strings.TrimSuffix(buf.String(), "\n")
	if !json.Valid([]byte(line)) {
		t.Fatalf("emitted line is not valid JSON: %q", line)
	}
	m := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"nan":    "NaN",
		"posinf": "+Inf",
		"neginf": "-Inf",
	} {
		got, ok := m[key].(string)
		if !ok || !strings.HasPrefix(got, "!ERROR:") || !strings.HasSuffix(got, want) {
			t.Fatalf("%s = %v, want !ERROR marker ending in %q", key, m[key], want)
		}
	}
	if m["ok"] != 1.5 {
		t.Fatalf("finite float = %v", m["ok"])
	}
}

// TestReplaceAttrBuiltins verifies the hook sees the standard time, level,
// and msg attributes like slog.JSONHandler's ReplaceAttr does.
func TestReplaceAttrBuiltins(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, WithReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			return slog.Attr{}
		case slog.MessageKey:
			return slog.String(slog.MessageKey, "[rewritten]")
		}
		return a
	}))

	slog.New(h).Info("original")

	m := decodeLine(t, &buf)
	if _, ok := m[slog.TimeKey]; ok {
		t.Fatalf("dropped time key still present: %v", m)
	}
	if m[slog.MessageKey] != "[rewritten]" {
		t.Fatalf("msg = %v", m[slog.MessageKey])
	}
	if m[slog.LevelKey] != "INFO" {
		t.Fatalf("level = %v", m[slog.LevelKey])
	}
}

// TestAnyValues covers the error, Stringer, marshal, and nil paths.
func TestAnyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf))

	type payload struct {
		N int `json:"n"`
	}
	logger.Info("mixed",
		slog.Any("err", errors.New("boom")),
		slog.Any("dur", 2*time.Second),
		slog.Any("obj", payload{N: 7}),
		slog.Any("nothing", nil),
	)

	m := decodeLine(t, &buf)
	if m["err"] != "boom" {
		t.Fatalf("error value = %v", m["err"])
	}
	if m["dur"] != "2s" {
		t.Fatalf("stringer value = %v", m["dur"])
	}
	obj, ok := m["obj"].(map[string]any)
	if !ok || obj["n"] != float64(7) {
		t.Fatalf("marshaled value = %v", m["obj"])
	}
	if v, ok := m["nothing"]; !ok || v != nil {
		t.Fatalf("nil value = %v (present=%v)", v, ok)
	}
}

// TestSourceLocation checks the source group fields when enabled.
func TestSourceLocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, WithSource(true)))

	logger.Info("here")

	m := decodeLine(t, &buf)
	src, ok := m[slog.SourceKey].(map[string]any)
	if !ok {
		t.Fatalf("source missing: %v", m)
	}
	file, _ := src["file"].(string)
	if !strings.HasSuffix(file, "handler_test.go") {
		t.Fatalf("source file = %q", file)
	}
	if line, _ := src["line"].(float64); line <= 0 {
		t.Fatalf("source line = %v", src["line"])
	}
}

// TestTraceCorrelationRawKeys fabricates a span context and expects otel.*
// keys when no project is configured.
func TestTraceCorrelationRawKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x01, 0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")

	m := decodeLine(t, &buf)
	if m["otel.trace_id"] != sc.TraceID().String() {
		t.Fatalf("trace id = %v", m["otel.trace_id"])
	}
	if m["otel.span_id"] != sc.SpanID().String() {
		t.Fatalf("span id = %v", m["otel.span_id"])
	}
	if m["otel.trace_sampled"] != true {
		t.Fatalf("sampled = %v", m["otel.trace_sampled"])
	}
}

// TestTraceCorrelationProjectKeys expects Cloud Logging key forms when a
// project is configured, and no span key for remote parents.
func TestTraceCorrelationProjectKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, WithTraceProject("proj-x")))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x01, 0x02},
		Remote:  true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")

	m := decodeLine(t, &buf)
	want := "projects/proj-x/traces/" + sc.TraceID().String()
	if m[TraceKey] != want {
		t.Fatalf("trace = %v, want %v", m[TraceKey], want)
	}
	if _, ok := m[SpanKey]; ok {
		t.Fatalf("span key emitted for remote parent: %v", m)
	}
	if m[SampledKey] != false {
		t.Fatalf("sampled = %v", m[SampledKey])
	}
}

// TestServiceContext enriches records with the detected service identity.
func TestServiceContext(t *testing.T) {
	t.Setenv("K_SERVICE", "frontend")
	t.Setenv("K_REVISION", "frontend-00017")
	t.Setenv("JSONW_PROJECT_ID", "proj-svc")

	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, WithServiceContext(true)))

	logger.Info("up")

	m := decodeLine(t, &buf)
	svc, ok := m["serviceContext"].(map[string]any)
	if !ok {
		t.Fatalf("serviceContext missing: %v", m)
	}
	if svc["service"] != "frontend" || svc["version"] != "frontend-00017" {
		t.Fatalf("serviceContext = %v", svc)
	}
}

// TestIndentedRecords verifies the pretty mode still decodes and spans
// multiple lines.
func TestIndentedRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, WithIndent(2)))

	logger.Info("pretty", slog.String("k", "v"))

	out := buf.String()
	if !strings.Contains(out, "\n  ") {
		t.Fatalf("expected indented output, got %q", out)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("decoding pretty record: %v", err)
	}
	if m["k"] != "v" {
		t.Fatalf("attrs = %v", m)
	}
}

// TestHandlerClonesAreIndependent ensures WithAttrs does not leak attributes
// back into the parent handler.
func TestHandlerClonesAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	base := NewHandler(&buf)
	child := base.WithAttrs([]slog.Attr{slog.String("child", "yes")})

	slog.New(base).Info("from base")
	m := decodeLine(t, &buf)
	if _, ok := m["child"]; ok {
		t.Fatalf("parent emitted child attr: %v", m)
	}

	buf.Reset()
	slog.New(child).Info("from child")
	m = decodeLine(t, &buf)
	if m["child"] != "yes" {
		t.Fatalf("child attr missing: %v", m)
	}
}

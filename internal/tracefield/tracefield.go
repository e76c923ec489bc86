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

// Package tracefield streams OpenTelemetry trace correlation fields into a
// JSON object under construction. It is shared by the slog handler, the HTTP
// middleware, and the gRPC interceptors so all three emit identical keys.
package tracefield

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/jsonw"
)

// Keys recognized by Cloud Logging for automatic linking with Cloud Trace,
// used when a cloud project is known.
const (
	TraceKey   = "logging.googleapis.com/trace"
	SpanKey    = "logging.googleapis.com/spanId"
	SampledKey = "logging.googleapis.com/trace_sampled"
)

// Fallback keys used when no project is configured or detected.
const (
	RawTraceIDKey = "otel.trace_id"
	RawSpanIDKey  = "otel.span_id"
	RawSampledKey = "otel.trace_sampled"
)

// Write streams trace correlation members into the open object on w when ctx
// carries a valid span context. The span ID is only emitted for spans owned
// by this process; a remote parent's span ID would mislink the entry.
func Write(w *jsonw.Writer, ctx context.Context, projectID string) {
	if ctx == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}

	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()
	ownsSpan := !sc.IsRemote()

	if projectID != "" {
		w.Name(TraceKey)
		w.String("projects/" + projectID + "/traces/" + traceID)
		if ownsSpan && spanID != "" {
			w.Name(SpanKey)
			w.String(spanID)
		}
		w.Name(SampledKey)
		w.Bool(sc.IsSampled())
		return
	}

	w.Name(RawTraceIDKey)
	w.String(traceID)
	if ownsSpan && spanID != "" {
		w.Name(RawSpanIDKey)
		w.String(spanID)
	}
	w.Name(RawSampledKey)
	w.Bool(sc.IsSampled())
}

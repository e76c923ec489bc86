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
	"context"

	"github.com/pjscruggs/jsonw"
	"github.com/pjscruggs/jsonw/internal/tracefield"
)

// Keys used for trace correlation when a cloud project is known. These forms
// are recognized by Cloud Logging for automatic linking with Cloud Trace.
const (
	// TraceKey is the field name for the formatted trace resource,
	// "projects/PROJECT_ID/traces/TRACE_ID".
	TraceKey = tracefield.TraceKey
	// SpanKey is the field name for the hex span ID.
	SpanKey = tracefield.SpanKey
	// SampledKey is the field name for the boolean sampling decision.
	SampledKey = tracefield.SampledKey
)

// writeTraceFields streams trace correlation members into the record object
// when ctx carries a valid span context.
func writeTraceFields(w *jsonw.Writer, ctx context.Context, projectID string) {
	tracefield.Write(w, ctx, projectID)
}

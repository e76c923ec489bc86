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

// Package jsonwslog provides a [log/slog] handler that renders each record
// as a single JSON line by streaming tokens through the jsonw encoder, with
// no intermediate map or tree representation. Records carry the familiar
// time, level, and msg keys; WithGroup opens nested objects; and when the
// record's context holds a valid OpenTelemetry span context the handler adds
// trace correlation fields automatically.
//
//	handler := jsonwslog.NewHandler(os.Stdout, jsonwslog.WithLevel(slog.LevelDebug))
//	logger := slog.New(handler)
//	logger.Info("index rebuilt", slog.Int("docs", 42))
//
// When a trace project is configured (or detected from the environment) the
// correlation fields use the Cloud Logging key forms so entries link up with
// Cloud Trace; otherwise raw otel.* keys are emitted.
package jsonwslog

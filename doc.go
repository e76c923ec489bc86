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

// Package jsonw provides a streaming, forward-only JSON encoder that writes
// directly to an [io.Writer]. Callers drive the output token by token
// (container delimiters, member names, scalar values) and the [Writer]
// takes care of comma placement, optional indentation, and string escaping.
// Nothing is buffered across calls and no in-memory tree is built, which
// makes the package suitable for emitting large documents, JSON Lines
// streams, and log records with predictable memory use.
//
// The Writer is deliberately permissive: it does not validate call ordering,
// so a caller that mismatches Begin/End pairs gets malformed output, not an
// error. This keeps the encoder a thin building block for trusted callers
// such as the subpackages in this module, which enforce structure themselves.
//
// A compact object:
//
//	w := jsonw.NewWriter(os.Stdout)
//	w.BeginObject()
//	w.Name("user")
//	w.String("amara")
//	w.Name("logins")
//	w.Int(42)
//	w.EndObject()
//
// produces {"user":"amara","logins":42}. With jsonw.WithIndent(2) the same
// calls produce a multi-line document indented two spaces per level.
//
// # Subpackages
//
//   - [github.com/pjscruggs/jsonw/jsonwslog] renders log/slog records as
//     JSON lines through the streaming encoder, with OpenTelemetry trace
//     correlation.
//   - [github.com/pjscruggs/jsonw/jsonwhttp] is net/http middleware that
//     emits one JSON access-log entry per request.
//   - [github.com/pjscruggs/jsonw/jsonwgrpc] provides gRPC client and server
//     interceptors that log RPCs as JSON entries.
package jsonw

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

// Package jsonwhttp provides net/http middleware that emits one JSON access
// log line per request, streamed through the jsonw encoder. Each line carries
// the method, target, protocol, status, sizes, latency, and, when the request
// context holds a valid OpenTelemetry span context, trace correlation fields.
//
//	mw := jsonwhttp.Middleware(os.Stdout)
//	http.ListenAndServe(":8080", mw(mux))
//
// When tracing is enabled with WithOTel the handler chain is wrapped in
// otelhttp instrumentation so each request gets a server span, and the access
// line links to it.
package jsonwhttp

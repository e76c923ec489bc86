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

// Package jsonwgrpc provides gRPC interceptors that emit one JSON line per
// RPC, streamed through the jsonw encoder. Lines carry the full method name,
// the RPC kind, the status code, latency, payload sizes, and trace
// correlation fields when the context holds a valid span context.
//
//	srv := grpc.NewServer(jsonwgrpc.ServerOptions(os.Stdout)...)
//
// ServerOptions and DialOptions install the interceptors together with
// otelgrpc stats handlers when tracing is enabled with WithOTel.
package jsonwgrpc

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

package jsonwgrpc

import (
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// defaultMaxPayloadSize bounds logged payload JSON before truncation.
const defaultMaxPayloadSize = 8192

// Option configures the interceptors during construction.
type Option func(*config)

type config struct {
	projectID    string
	includePeer  bool
	includeSizes bool

	logPayloads    bool
	maxPayloadSize int

	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
	propagatorsSet bool
}

func defaultConfig() *config {
	return &config{
		includePeer:    true,
		includeSizes:   true,
		maxPayloadSize: defaultMaxPayloadSize,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithProjectID sets the cloud project used to format trace correlation
// fields in the Cloud Logging form. When empty, raw otel.* keys are used.
func WithProjectID(projectID string) Option {
	return func(cfg *config) {
		cfg.projectID = projectID
	}
}

// WithPeer controls the network.peer.ip field on server-side lines.
// Defaults to true.
func WithPeer(enabled bool) Option {
	return func(cfg *config) {
		cfg.includePeer = enabled
	}
}

// WithSizes controls the payload size fields, measured with proto.Size for
// protobuf messages. Defaults to true.
func WithSizes(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeSizes = enabled
	}
}

// WithPayloads includes unary request and response payloads on each line,
// rendered with protojson. Payloads may carry user data; off by default.
func WithPayloads(enabled bool) Option {
	return func(cfg *config) {
		cfg.logPayloads = enabled
	}
}

// WithMaxPayloadSize bounds the rendered payload JSON in bytes before
// truncation. Zero or negative disables the bound.
func WithMaxPayloadSize(n int) Option {
	return func(cfg *config) {
		cfg.maxPayloadSize = n
	}
}

// WithOTel installs otelgrpc stats handlers through ServerOptions and
// DialOptions so RPCs are traced.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider overrides the tracer provider used by the otelgrpc
// stats handlers enabled via WithOTel.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators overrides the propagator used by the otelgrpc stats
// handlers. When unset the global propagator applies.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
		cfg.propagatorsSet = true
	}
}

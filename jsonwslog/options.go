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

import "log/slog"

// Option configures a Handler during construction via NewHandler.
type Option func(*config)

type config struct {
	level          slog.Leveler
	addSource      bool
	replaceAttr    func(groups []string, a slog.Attr) slog.Attr
	indent         int
	htmlEscape     bool
	traceProject   string
	serviceContext bool
}

// defaultConfig returns the baseline handler configuration.
func defaultConfig() *config {
	return &config{level: slog.LevelInfo}
}

// applyOptions applies the provided Option list, starting from defaultConfig.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLevel sets the minimum level the handler emits. Defaults to
// slog.LevelInfo. A slog.LevelVar may be supplied for dynamic control.
func WithLevel(level slog.Leveler) Option {
	return func(cfg *config) {
		if level != nil {
			cfg.level = level
		}
	}
}

// WithSource includes the source location (function, file, line) of the
// logging call under the standard "source" key. Resolving the location
// incurs a performance cost. Defaults to false.
func WithSource(enabled bool) Option {
	return func(cfg *config) {
		cfg.addSource = enabled
	}
}

// WithReplaceAttr installs a rewrite hook applied to every non-group
// attribute before it is emitted, receiving the enclosing group path. As
// with slog.HandlerOptions.ReplaceAttr, the hook also sees the built-in
// time, level, source, and msg attributes with a nil group path.
func WithReplaceAttr(fn func(groups []string, a slog.Attr) slog.Attr) Option {
	return func(cfg *config) {
		cfg.replaceAttr = fn
	}
}

// WithIndent pretty-prints each record with n spaces per nesting level.
// Intended for local development; the default compact single-line form is
// what log collectors expect.
func WithIndent(n int) Option {
	return func(cfg *config) {
		if n < 0 {
			n = 0
		}
		cfg.indent = n
	}
}

// WithHTMLEscaping emits '<', '>', and '&' as \u00XX sequences in string
// values. Defaults to false.
func WithHTMLEscaping(enabled bool) Option {
	return func(cfg *config) {
		cfg.htmlEscape = enabled
	}
}

// WithTraceProject sets the cloud project used to format trace correlation
// fields in the Cloud Logging form ("projects/<id>/traces/<trace>"). When
// empty, raw otel.* keys are used unless detection is enabled with
// WithServiceContext.
func WithTraceProject(projectID string) Option {
	return func(cfg *config) {
		cfg.traceProject = projectID
	}
}

// WithServiceContext enriches every record with a serviceContext object
// describing the detected service name and version, and lets trace
// correlation fall back to the detected cloud project. Detection inspects
// environment variables and, on GCE, the metadata server, once per process.
func WithServiceContext(enabled bool) Option {
	return func(cfg *config) {
		cfg.serviceContext = enabled
	}
}

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

package jsonw

// Option configures a Writer during construction via NewWriter. A Writer's
// configuration is fixed for its lifetime; there is no reset or reuse
// operation.
type Option func(*Writer)

// WithIndent enables pretty-printing with n spaces per nesting level.
// Zero (the default) produces compact output with no whitespace at all,
// including no space after the name separator. Negative values are treated
// as zero.
func WithIndent(n int) Option {
	return func(w *Writer) {
		if n < 0 {
			n = 0
		}
		w.indent = n
	}
}

// WithHTMLEscaping controls whether '<', '>', and '&' are emitted as \u00XX
// sequences so the output can be embedded in HTML contexts. Disabled by
// default; the core escaping of control bytes, quotes, and backslashes is
// unaffected either way.
func WithHTMLEscaping(enabled bool) Option {
	return func(w *Writer) {
		w.escapeHTML = enabled
	}
}

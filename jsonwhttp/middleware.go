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

package jsonwhttp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/jsonw"
	"github.com/pjscruggs/jsonw/internal/emit"
	"github.com/pjscruggs/jsonw/internal/runtimeinfo"
	"github.com/pjscruggs/jsonw/internal/tracefield"
)

const instrumentationName = "github.com/pjscruggs/jsonw/jsonwhttp"

// Middleware returns an http.Handler middleware that writes one JSON access
// line per request to out. Lines from concurrent requests never interleave.
func Middleware(out io.Writer, opts ...Option) func(http.Handler) http.Handler {
	cfg := applyOptions(opts)
	emitter := emit.New(out)

	projectID := strings.TrimSpace(cfg.projectID)
	if projectID == "" {
		projectID = runtimeinfo.Detect().ProjectID
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}

		logging := buildLoggingHandler(cfg, emitter, projectID, next)
		chain := wrapWithOTel(cfg, logging)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if newCtx := ensureSpanContext(ctx, r, cfg); newCtx != ctx {
				r = r.WithContext(newCtx)
			}
			chain.ServeHTTP(w, r)
		})
	}
}

// buildLoggingHandler wraps next so that request completion emits an access
// line, including when next panics.
func buildLoggingHandler(cfg *config, emitter *emit.Emitter, projectID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			writeAccessLine(emitter, cfg, projectID, r, rec, time.Since(start))
		}()

		next.ServeHTTP(rec, r)
	})
}

// writeAccessLine streams one completed request as a JSON object.
func writeAccessLine(emitter *emit.Emitter, cfg *config, projectID string, r *http.Request, rec *responseRecorder, latency time.Duration) {
	emitter.Emit(func(w *jsonw.Writer) {
		w.BeginObject()
		w.Name("time")
		w.String(time.Now().Format(time.RFC3339Nano))
		w.Name("http.method")
		w.String(r.Method)
		if r.URL != nil {
			w.Name("http.target")
			w.String(r.URL.Path)
			if cfg.includeQuery && r.URL.RawQuery != "" {
				w.Name("http.query")
				w.String(r.URL.RawQuery)
			}
		}
		w.Name("http.proto")
		w.String(r.Proto)
		if r.Host != "" {
			w.Name("http.host")
			w.String(r.Host)
		}
		w.Name("http.status_code")
		w.Int(int64(rec.Status()))
		if r.ContentLength > 0 {
			w.Name("http.request_size")
			w.Int(r.ContentLength)
		}
		w.Name("http.response_size")
		w.Int(rec.BytesWritten())
		w.Name("http.latency")
		w.Int(latency.Nanoseconds())
		if cfg.includeClientIP {
			if ip := extractIP(r.RemoteAddr); ip != "" {
				w.Name("network.peer.ip")
				w.String(ip)
			}
		}
		if cfg.includeUserAgent {
			if ua := r.UserAgent(); ua != "" {
				w.Name("http.user_agent")
				w.String(ua)
			}
		}
		tracefield.Write(w, r.Context(), projectID)
		w.EndObject()
	})
}

// wrapWithOTel wraps handler with otelhttp middleware when enabled.
func wrapWithOTel(cfg *config, handler http.Handler) http.Handler {
	if !cfg.enableOTel {
		return handler
	}

	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagatorsSet && cfg.propagators != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
	}
	return otelhttp.NewHandler(handler, instrumentationName, otelOpts...)
}

// ensureSpanContext extracts a span context from incoming headers when the
// request context does not already carry a valid one.
func ensureSpanContext(ctx context.Context, r *http.Request, cfg *config) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}

	propagator := cfg.propagators
	if !cfg.propagatorsSet {
		propagator = otel.GetTextMapPropagator()
	}
	if propagator == nil {
		return ctx
	}

	extracted := propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
	if !trace.SpanContextFromContext(extracted).IsValid() {
		return ctx
	}
	return extracted
}

// extractIP strips the port from a host:port string.
func extractIP(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// responseRecorder captures the status and byte count while preserving the
// optional interfaces of the underlying ResponseWriter.
type responseRecorder struct {
	http.ResponseWriter
	status       int
	wroteHeader  bool
	bytesWritten int64
}

// WriteHeader records the status code before delegating to the wrapped writer.
func (rr *responseRecorder) WriteHeader(status int) {
	if rr.wroteHeader {
		rr.ResponseWriter.WriteHeader(status)
		return
	}
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
	rr.wroteHeader = true
}

// Write records bytes written and forwards the call to the underlying writer.
func (rr *responseRecorder) Write(p []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(p)
	if n > 0 {
		rr.bytesWritten += int64(n)
	}
	if err != nil {
		return n, fmt.Errorf("write response body: %w", err)
	}
	return n, nil
}

// ReadFrom streams data from src while tracking bytes for logging.
func (rr *responseRecorder) ReadFrom(src io.Reader) (int64, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	var n int64
	var err error
	if rf, ok := rr.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(rr.ResponseWriter, src)
	}
	if n > 0 {
		rr.bytesWritten += n
	}
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}
	return n, nil
}

// Status returns the HTTP status code that was written to the client.
func (rr *responseRecorder) Status() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

// BytesWritten reports the cumulative number of bytes sent to the client.
func (rr *responseRecorder) BytesWritten() int64 {
	return rr.bytesWritten
}

// Unwrap exposes the underlying ResponseWriter for http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// Flush forwards the flush request to the underlying ResponseWriter when supported.
func (rr *responseRecorder) Flush() {
	if flusher, ok := rr.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack delegates to the wrapped Hijacker when supported.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rr.ResponseWriter.(http.Hijacker); ok {
		conn, rw, err := hijacker.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, rw, nil
	}
	return nil, nil, http.ErrNotSupported
}

// Push forwards HTTP/2 push requests when the underlying writer supports http.Pusher.
func (rr *responseRecorder) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := rr.ResponseWriter.(http.Pusher); ok {
		if err := pusher.Push(target, opts); err != nil {
			return fmt.Errorf("http/2 push: %w", err)
		}
		return nil
	}
	return http.ErrNotSupported
}

// CloseNotify exposes the wrapped CloseNotifier channel when available.
func (rr *responseRecorder) CloseNotify() <-chan bool {
	if cn, ok := rr.ResponseWriter.(interface{ CloseNotify() <-chan bool }); ok {
		return cn.CloseNotify()
	}
	return nil
}

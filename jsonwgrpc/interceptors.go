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
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pjscruggs/jsonw"
	"github.com/pjscruggs/jsonw/internal/emit"
	"github.com/pjscruggs/jsonw/internal/runtimeinfo"
	"github.com/pjscruggs/jsonw/internal/tracefield"
)

// rpcCall accumulates per-RPC fields until the line is emitted. Stream
// wrappers may touch it from concurrent send and receive goroutines.
type rpcCall struct {
	method string
	kind   string
	client bool
	peer   string

	reqBytes  atomic.Int64
	respBytes atomic.Int64
	reqMsgs   atomic.Int64
	respMsgs  atomic.Int64
}

func newRPCCall(method, kind string, client bool) *rpcCall {
	c := &rpcCall{method: method, kind: kind, client: client}
	c.reqBytes.Store(-1)
	c.respBytes.Store(-1)
	return c
}

func (c *rpcCall) addRequest(m any) {
	if n := protoSize(m); n >= 0 {
		if c.reqBytes.Load() < 0 {
			c.reqBytes.Store(0)
		}
		c.reqBytes.Add(n)
	}
	c.reqMsgs.Add(1)
}

func (c *rpcCall) addResponse(m any) {
	if n := protoSize(m); n >= 0 {
		if c.respBytes.Load() < 0 {
			c.respBytes.Store(0)
		}
		c.respBytes.Add(n)
	}
	c.respMsgs.Add(1)
}

// emitLine streams one completed RPC as a JSON object.
func emitLine(e *emit.Emitter, cfg *config, projectID string, ctx context.Context, c *rpcCall, code codes.Code, latency time.Duration, req, resp any) {
	e.Emit(func(w *jsonw.Writer) {
		w.BeginObject()
		w.Name("time")
		w.String(time.Now().Format(time.RFC3339Nano))
		w.Name("rpc.method")
		w.String(c.method)
		w.Name("rpc.kind")
		w.String(c.kind)
		if c.client {
			w.Name("rpc.client")
			w.Bool(true)
		}
		w.Name("rpc.code")
		w.String(code.String())
		w.Name("rpc.latency")
		w.Int(latency.Nanoseconds())
		if c.peer != "" {
			w.Name("network.peer.ip")
			w.String(c.peer)
		}
		if cfg.includeSizes {
			if n := c.reqBytes.Load(); n >= 0 {
				w.Name("rpc.request_size")
				w.Int(n)
			}
			if n := c.respBytes.Load(); n >= 0 {
				w.Name("rpc.response_size")
				w.Int(n)
			}
		}
		if c.kind != "unary" {
			w.Name("rpc.request_msgs")
			w.Int(c.reqMsgs.Load())
			w.Name("rpc.response_msgs")
			w.Int(c.respMsgs.Load())
		}
		if cfg.logPayloads && c.kind == "unary" {
			writePayload(w, "rpc.request", req, cfg.maxPayloadSize)
			writePayload(w, "rpc.response", resp, cfg.maxPayloadSize)
		}
		tracefield.Write(w, ctx, projectID)
		w.EndObject()
	})
}

// UnaryServerInterceptor emits one JSON line per unary RPC to out.
func UnaryServerInterceptor(out io.Writer, opts ...Option) grpc.UnaryServerInterceptor {
	cfg := applyOptions(opts)
	return unaryServerInterceptor(emit.New(out), cfg, resolveProjectID(cfg.projectID))
}

func unaryServerInterceptor(e *emit.Emitter, cfg *config, projectID string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = ensureSpanContext(ctx, cfg)

		call := newRPCCall(info.FullMethod, "unary", false)
		if cfg.includePeer {
			if addr, ok := peerAddress(ctx); ok {
				call.peer = addr
			}
		}
		call.addRequest(req)

		resp, err := handler(ctx, req)
		if err == nil {
			call.addResponse(resp)
		}
		emitLine(e, cfg, projectID, ctx, call, status.Code(err), time.Since(start), req, resp)
		return resp, err
	}
}

// StreamServerInterceptor emits one JSON line per streaming RPC to out.
func StreamServerInterceptor(out io.Writer, opts ...Option) grpc.StreamServerInterceptor {
	cfg := applyOptions(opts)
	return streamServerInterceptor(emit.New(out), cfg, resolveProjectID(cfg.projectID))
}

func streamServerInterceptor(e *emit.Emitter, cfg *config, projectID string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := ensureSpanContext(ss.Context(), cfg)

		call := newRPCCall(info.FullMethod, streamKind(info), false)
		if cfg.includePeer {
			if addr, ok := peerAddress(ctx); ok {
				call.peer = addr
			}
		}

		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx, call: call})
		emitLine(e, cfg, projectID, ctx, call, status.Code(err), time.Since(start), nil, nil)
		return err
	}
}

// UnaryClientInterceptor emits one JSON line per outgoing unary RPC to out.
func UnaryClientInterceptor(out io.Writer, opts ...Option) grpc.UnaryClientInterceptor {
	cfg := applyOptions(opts)
	return unaryClientInterceptor(emit.New(out), cfg, resolveProjectID(cfg.projectID))
}

func unaryClientInterceptor(e *emit.Emitter, cfg *config, projectID string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		start := time.Now()

		call := newRPCCall(method, "unary", true)
		call.addRequest(req)

		err := invoker(ctx, method, req, reply, cc, callOpts...)
		if err == nil {
			call.addResponse(reply)
		}
		emitLine(e, cfg, projectID, ctx, call, status.Code(err), time.Since(start), req, reply)
		return err
	}
}

// StreamClientInterceptor emits one JSON line per outgoing streaming RPC to
// out. The line is written when the stream terminates: on io.EOF from
// RecvMsg, on the first send or receive error, or on a CloseSend failure.
func StreamClientInterceptor(out io.Writer, opts ...Option) grpc.StreamClientInterceptor {
	cfg := applyOptions(opts)
	return streamClientInterceptor(emit.New(out), cfg, resolveProjectID(cfg.projectID))
}

func streamClientInterceptor(e *emit.Emitter, cfg *config, projectID string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()

		call := newRPCCall(method, clientStreamKind(desc), true)

		cs, err := streamer(ctx, desc, cc, method, callOpts...)
		if err != nil {
			emitLine(e, cfg, projectID, ctx, call, status.Code(err), time.Since(start), nil, nil)
			return nil, err
		}

		return &clientStream{
			ClientStream: cs,
			emitter:      e,
			cfg:          cfg,
			projectID:    projectID,
			ctx:          ctx,
			call:         call,
			start:        start,
		}, nil
	}
}

// ServerOptions returns grpc.ServerOptions that install the logging
// interceptors and, when enabled, otelgrpc stats handlers. Both interceptors
// share one emitter so unary and stream lines never interleave.
func ServerOptions(out io.Writer, opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)
	e := emit.New(out)
	projectID := resolveProjectID(cfg.projectID)

	var serverOpts []grpc.ServerOption
	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(unaryServerInterceptor(e, cfg, projectID)),
		grpc.ChainStreamInterceptor(streamServerInterceptor(e, cfg, projectID)),
	)
	return serverOpts
}

// DialOptions returns grpc.DialOptions that install the logging interceptors
// and, when enabled, otelgrpc stats handlers.
func DialOptions(out io.Writer, opts ...Option) []grpc.DialOption {
	cfg := applyOptions(opts)
	e := emit.New(out)
	projectID := resolveProjectID(cfg.projectID)

	var dialOpts []grpc.DialOption
	if cfg.enableOTel {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsHandlerOptions(cfg)...)))
	}
	dialOpts = append(dialOpts,
		grpc.WithChainUnaryInterceptor(unaryClientInterceptor(e, cfg, projectID)),
		grpc.WithChainStreamInterceptor(streamClientInterceptor(e, cfg, projectID)),
	)
	return dialOpts
}

// statsHandlerOptions configures otelgrpc instrumentation.
func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagatorsSet && cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	return opts
}

// resolveProjectID selects the explicit ID if provided, otherwise falls back
// to runtime detection.
func resolveProjectID(explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		return explicit
	}
	return runtimeinfo.Detect().ProjectID
}

// ensureSpanContext extracts a span context from incoming request metadata
// when the context does not already carry a valid one, so RPCs arriving with
// trace headers but no local instrumentation still get correlated lines.
func ensureSpanContext(ctx context.Context, cfg *config) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	propagator := cfg.propagators
	if !cfg.propagatorsSet {
		propagator = otel.GetTextMapPropagator()
	}
	if propagator == nil {
		return ctx
	}

	extracted := propagator.Extract(ctx, metadataCarrier(md))
	if !trace.SpanContextFromContext(extracted).IsValid() {
		return ctx
	}
	return extracted
}

// metadataCarrier adapts grpc metadata to the propagation carrier interface.
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	values := metadata.MD(c).Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// peerAddress extracts the remote host portion of the peer address in the
// context.
func peerAddress(ctx context.Context) (string, bool) {
	pr, ok := peer.FromContext(ctx)
	if !ok || pr == nil || pr.Addr == nil {
		return "", false
	}
	addr := pr.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host, true
	}
	return addr, true
}

// streamKind converts gRPC stream information into a canonical kind string.
func streamKind(info *grpc.StreamServerInfo) string {
	switch {
	case info.IsClientStream && info.IsServerStream:
		return "bidi_stream"
	case info.IsClientStream:
		return "client_stream"
	case info.IsServerStream:
		return "server_stream"
	default:
		return "unary"
	}
}

// clientStreamKind converts a StreamDesc into the kind string used for
// logging.
func clientStreamKind(desc *grpc.StreamDesc) string {
	switch {
	case desc.ClientStreams && desc.ServerStreams:
		return "bidi_stream"
	case desc.ClientStreams:
		return "client_stream"
	case desc.ServerStreams:
		return "server_stream"
	default:
		return "unary"
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx  context.Context
	call *rpcCall
}

// Context returns the request context, including any span context extracted
// from incoming metadata.
func (s *serverStream) Context() context.Context {
	return s.ctx
}

// RecvMsg records inbound payload sizes before delegating to the underlying
// stream.
func (s *serverStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil {
		s.call.addRequest(m)
	}
	return err
}

// SendMsg records outbound payload sizes before delegating to the underlying
// stream.
func (s *serverStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.call.addResponse(m)
	}
	return err
}

type clientStream struct {
	grpc.ClientStream
	emitter   *emit.Emitter
	cfg       *config
	projectID string
	ctx       context.Context
	call      *rpcCall
	start     time.Time
	once      sync.Once
}

// SendMsg records outbound payload sizes and finalizes the line on error.
func (c *clientStream) SendMsg(m any) error {
	err := c.ClientStream.SendMsg(m)
	if err == nil {
		c.call.addRequest(m)
	} else {
		c.finish(status.Code(err))
	}
	return err
}

// RecvMsg records inbound payload sizes and finalizes the line when the
// stream ends.
func (c *clientStream) RecvMsg(m any) error {
	err := c.ClientStream.RecvMsg(m)
	if err == nil {
		c.call.addResponse(m)
		return nil
	}
	if err == io.EOF {
		c.finish(codes.OK)
	} else {
		c.finish(status.Code(err))
	}
	return err
}

// CloseSend closes the sending side and finalizes the line on error.
func (c *clientStream) CloseSend() error {
	err := c.ClientStream.CloseSend()
	if err != nil {
		c.finish(status.Code(err))
	}
	return err
}

// finish emits the line exactly once.
func (c *clientStream) finish(code codes.Code) {
	c.once.Do(func() {
		emitLine(c.emitter, c.cfg, c.projectID, c.ctx, c.call, code, time.Since(c.start), nil, nil)
	})
}

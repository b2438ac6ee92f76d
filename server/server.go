/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/javimosch/mr-pilot/dispatch"
	"github.com/javimosch/mr-pilot/proxy"
)

// Config assembles a front-end server.
type Config struct {
	// Dispatcher serves local invocations (standalone and slave modes).
	Dispatcher *dispatch.Dispatcher

	// Master enables dispatcher mode: the /ws channel endpoint is exposed
	// and /rpc relays to the connected slave instead of dispatching
	// locally.
	Master bool

	// SlaveCodes is the credential whitelist for master mode.
	SlaveCodes []string

	// RegistryOptions tune the master registry; tests use these to scale
	// timeouts down.
	RegistryOptions []proxy.Option
}

// Server is the front-end HTTP transport.
type Server struct {
	dispatcher *dispatch.Dispatcher
	registry   *proxy.Registry
	broker     *Broker
	upgrader   websocket.Upgrader
}

// New creates the server. In master mode it owns the slave registry and
// feeds its lifecycle events into the event stream.
func New(cfg Config) *Server {
	s := &Server{
		dispatcher: cfg.Dispatcher,
		broker:     NewBroker(),
	}
	if cfg.Master {
		opts := append([]proxy.Option{proxy.WithNotify(s.onSlaveEvent)}, cfg.RegistryOptions...)
		s.registry = proxy.NewRegistry(cfg.SlaveCodes, opts...)
	}
	return s
}

// Registry returns the master registry, or nil outside master mode.
func (s *Server) Registry() *proxy.Registry {
	return s.registry
}

func (s *Server) onSlaveEvent(ev proxy.Event) {
	s.broker.Publish(string(ev.Type), ev)
	if s.registry.HasSlave() {
		activeSlaveGauge.Set(1)
	} else {
		activeSlaveGauge.Set(0)
	}
}

// Handler builds the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.Handle("GET /events", s.broker)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.registry != nil {
		mux.HandleFunc("GET /ws", s.handleWS)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clog.FromContext(ctx).With("addr", addr).Info("Front-end listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *proxy.RPCError `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &proxy.RPCError{
			Code:    proxy.CodeParseError,
			Message: fmt.Sprintf("parse error: %v", err),
		}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &proxy.RPCError{
			Code:    proxy.CodeInvalidRequest,
			Message: "invalid JSON-RPC request",
		}})
		return
	}

	reviewTool := reviewToolName(req)
	if reviewTool != "" {
		s.broker.Publish("review_started", map[string]string{"tool": reviewTool})
	}

	started := time.Now()
	resp := s.execute(ctx, req)
	rpcDuration.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())

	if reviewTool != "" {
		outcome := "ok"
		if resp.Error != nil {
			outcome = "error"
		}
		s.broker.Publish("review_finished", map[string]string{"tool": reviewTool, "outcome": outcome})
	}
	writeRPC(w, resp)
}

// execute routes one request: relayed to the slave in master mode,
// dispatched locally otherwise.
func (s *Server) execute(ctx context.Context, req rpcRequest) rpcResponse {
	if s.registry != nil {
		reply, err := s.registry.Relay(ctx, req.Method, req.Params, req.ID)
		switch {
		case err == nil:
			rpcRequests.WithLabelValues(req.Method, outcomeOf(reply.Error != nil)).Inc()
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: reply.Result, Error: reply.Error}
		case errors.Is(err, proxy.ErrNoSlave):
			rpcRequests.WithLabelValues(req.Method, "no_slave").Inc()
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &proxy.RPCError{
				Code:    proxy.CodeInternalError,
				Message: proxy.ErrNoSlave.Error(),
			}}
		case errors.Is(err, proxy.ErrRelayTimeout):
			rpcRequests.WithLabelValues(req.Method, "timeout").Inc()
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &proxy.RPCError{
				Code:    proxy.CodeInternalError,
				Message: proxy.ErrRelayTimeout.Error(),
			}}
		default:
			rpcRequests.WithLabelValues(req.Method, "error").Inc()
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: asRPCError(err)}
		}
	}

	result, err := s.dispatcher.Invoke(ctx, req.Method, req.Params)
	rpcRequests.WithLabelValues(req.Method, outcomeOf(err != nil)).Inc()
	if err != nil {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: asRPCError(err)}
	}
	return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func outcomeOf(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

func asRPCError(err error) *proxy.RPCError {
	var rpcErr *proxy.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &proxy.RPCError{Code: proxy.CodeInternalError, Message: err.Error()}
}

// reviewToolName extracts the tool name from a tools/call request when it
// is one of the review tools, for the event stream.
func reviewToolName(req rpcRequest) string {
	if req.Method != "tools/call" {
		return ""
	}
	var call struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return ""
	}
	if strings.HasPrefix(call.Name, "review_") {
		return call.Name
	}
	return ""
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"healthy": true}
	if s.registry != nil {
		payload["slave_connected"] = s.registry.HasSlave()
		payload["pending_invocations"] = s.registry.PendingCount()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		clog.FromContext(r.Context()).With("error", err.Error()).Warn("Channel upgrade failed")
		return
	}
	s.registry.HandleConnection(r.Context(), conn)
}

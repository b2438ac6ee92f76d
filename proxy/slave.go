/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the fixed pause between slave reconnect attempts.
// There is no backoff growth and no retry cap: slaves are long-lived
// companions to a master that may itself restart, so reconnection is
// perpetual.
const DefaultReconnectDelay = 5 * time.Second

// Invoker is the local tool dispatcher the slave executes relayed
// invocations against. It is the same capability a standalone instance uses
// for its own front-end requests.
type Invoker interface {
	Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// Slave maintains the outbound channel from a slave instance to its master
// and serves relayed invocations over it.
type Slave struct {
	url            string
	code           string
	invoker        Invoker
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
}

// SlaveOption configures a Slave.
type SlaveOption func(*Slave)

// WithReconnectDelay overrides the fixed reconnect pause.
func WithReconnectDelay(d time.Duration) SlaveOption {
	return func(s *Slave) { s.reconnectDelay = d }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) SlaveOption {
	return func(s *Slave) { s.dialer = d }
}

// NewSlave creates a slave connector for the given master channel URL and
// credential, executing invocations against invoker.
func NewSlave(url, code string, invoker Invoker, opts ...SlaveOption) *Slave {
	s := &Slave{
		url:            url,
		code:           code,
		invoker:        invoker,
		reconnectDelay: DefaultReconnectDelay,
		dialer:         websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects to the master and serves invocations until ctx is canceled,
// redialing after the fixed delay whenever the channel closes for any
// reason. A rejected credential also reconnects: the code is static
// configuration, so the only way forward is the master being reconfigured.
func (s *Slave) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthFailed) {
			log.With("master", s.url).Error("Master rejected slave code; will retry with the same credential")
		} else if err != nil {
			log.With("master", s.url).With("error", err.Error()).Warn("Slave channel closed, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

// slaveConn wraps the outbound connection. Invocation goroutines reply
// concurrently, and gorilla allows a single writer at a time, so all writes
// go through writeMu.
type slaveConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *slaveConn) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// session runs a single connect-auth-serve cycle and returns when the
// channel closes.
func (s *Slave) session(ctx context.Context) error {
	log := clog.FromContext(ctx)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing master %s: %w", s.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// Unblock ReadMessage when the process is shutting down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sc := &slaveConn{conn: conn}
	if err := sc.write(Envelope{Type: TypeAuth, SlaveCode: s.code}); err != nil {
		return fmt.Errorf("sending authentication: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading from master channel: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.With("error", err.Error()).Warn("Dropping malformed channel message")
			continue
		}

		switch env.Kind() {
		case KindControl:
			switch env.Type {
			case TypeAuthSuccess:
				log.With("master", s.url).Info("Slave channel authenticated, ready for invocations")
			case TypeAuthFailed:
				_ = conn.Close()
				return fmt.Errorf("%w: %s", ErrAuthFailed, env.Message)
			default:
				log.With("type", env.Type).Warn("Dropping unexpected control message")
			}

		case KindInvocation:
			go s.serve(ctx, sc, env)

		default:
			log.Warn("Dropping channel message matching no known shape")
		}
	}
}

// serve executes one relayed invocation and writes the reply with the same
// correlation identifier. Each invocation runs on its own goroutine: tool
// calls can take minutes, and a slow one must not hold up later invocations
// on the channel. The master matches replies by correlation id, so replies
// need not arrive in invocation order.
func (s *Slave) serve(ctx context.Context, sc *slaveConn, env Envelope) {
	log := clog.FromContext(ctx)
	log.With("method", env.Method).With("id", env.CorrelationKey()).Info("Executing relayed invocation")

	result, err := s.invoker.Invoke(ctx, env.Method, env.Params)
	if err == nil && len(result) == 0 {
		result = json.RawMessage("null")
	}
	reply := replyEnvelope(result, asRPCError(err), env.ID)
	if err := sc.write(reply); err != nil {
		log.With("error", err.Error()).Warn("Failed writing invocation reply")
	}
}

// asRPCError converts a dispatcher error into the wire error object,
// preserving typed JSON-RPC errors and wrapping everything else as an
// internal error.
func asRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &RPCError{Code: CodeInternalError, Message: err.Error()}
}

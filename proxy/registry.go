/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/websocket"
)

// Default timeouts for the master side of the channel.
const (
	// DefaultAuthTimeout is how long a freshly opened channel may remain
	// unauthenticated before it is closed.
	DefaultAuthTimeout = 10 * time.Second

	// DefaultRelayTimeout is how long a relayed invocation waits for its
	// reply before failing with ErrRelayTimeout.
	DefaultRelayTimeout = 5 * time.Minute
)

// EventType identifies a slave lifecycle event emitted by the registry.
type EventType string

const (
	EventSlaveConnected    EventType = "slave_connected"
	EventSlaveSuperseded   EventType = "slave_superseded"
	EventSlaveDisconnected EventType = "slave_disconnected"
	EventSlaveRejected     EventType = "slave_rejected"
)

// Event describes a slave lifecycle change, for surfacing on the front-end
// event stream.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
}

// Registry is the master-side bookkeeping for the slave channel: the single
// active connection slot, admission control for new connections, and the
// pending-invocation map correlating replies to callers.
//
// The source of truth for both the active slot and the pending map is the
// registry mutex; connection read loops and relaying callers only touch them
// through the methods below.
type Registry struct {
	codes        map[string]struct{}
	authTimeout  time.Duration
	relayTimeout time.Duration
	notify       func(Event)

	mu      sync.Mutex
	active  *slaveChannel
	pending map[string]*pendingInvocation
}

// slaveChannel wraps one inbound websocket connection. Gorilla connections
// allow a single concurrent writer, so all writes go through writeMu.
type slaveChannel struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	connectedAt time.Time
}

func (c *slaveChannel) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// closeWithReason sends a close frame carrying the reason, then tears the
// connection down. Errors are ignored: the peer may already be gone.
func (c *slaveChannel) closeWithReason(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

// pendingInvocation is one in-flight relayed request awaiting its reply.
type pendingInvocation struct {
	reply       chan Reply
	submittedAt time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithAuthTimeout overrides the authentication deadline for new channels.
func WithAuthTimeout(d time.Duration) Option {
	return func(r *Registry) { r.authTimeout = d }
}

// WithRelayTimeout overrides the per-invocation reply deadline.
func WithRelayTimeout(d time.Duration) Option {
	return func(r *Registry) { r.relayTimeout = d }
}

// WithNotify registers a hook invoked on slave lifecycle events. The hook is
// called synchronously and must not block.
func WithNotify(fn func(Event)) Option {
	return func(r *Registry) { r.notify = fn }
}

// NewRegistry creates a registry accepting the given slave codes. The
// whitelist is immutable for the registry's lifetime.
func NewRegistry(codes []string, opts ...Option) *Registry {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	r := &Registry{
		codes:        set,
		authTimeout:  DefaultAuthTimeout,
		relayTimeout: DefaultRelayTimeout,
		pending:      map[string]*pendingInvocation{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasSlave reports whether an authenticated slave channel is active.
func (r *Registry) HasSlave() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// PendingCount returns the number of invocations awaiting replies.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// HandleConnection runs the lifecycle of one inbound channel: the
// authentication handshake (bounded by the auth timeout), then the reply
// read loop until the connection closes. It blocks until the channel is
// done and always leaves the registry consistent, so it is safe to call
// directly from an HTTP upgrade handler.
func (r *Registry) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	log := clog.FromContext(ctx)
	ch := &slaveChannel{conn: conn, connectedAt: time.Now()}

	authTimer := time.AfterFunc(r.authTimeout, func() {
		log.Warn("Closing slave channel: no authentication before deadline")
		ch.closeWithReason(websocket.ClosePolicyViolation, CloseReasonAuthTimeout)
	})
	defer authTimer.Stop()

	authed := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if authed {
				r.drop(ch)
				log.With("error", err.Error()).Info("Active slave channel closed")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.With("error", err.Error()).Warn("Dropping malformed channel message")
			continue
		}

		switch env.Kind() {
		case KindControl:
			if env.Type != TypeAuth {
				log.With("type", env.Type).Warn("Dropping unexpected control message")
				continue
			}
			if _, ok := r.codes[env.SlaveCode]; !ok {
				log.Warn("Rejecting slave channel: invalid slave code")
				_ = ch.write(Envelope{Type: TypeAuthFailed, Message: "invalid slave code"})
				ch.closeWithReason(websocket.ClosePolicyViolation, CloseReasonAuthFailed)
				// An active channel that re-authenticates badly is torn
				// down like any other close; the slot must not keep
				// pointing at a dead connection.
				if authed {
					r.drop(ch)
				}
				r.emit(EventSlaveRejected)
				return
			}
			authTimer.Stop()
			if !authed {
				authed = true
				r.admit(ctx, ch)
			}
			_ = ch.write(Envelope{Type: TypeAuthSuccess, Message: "authenticated"})

		case KindReply:
			if !authed {
				log.Warn("Dropping reply from unauthenticated channel")
				continue
			}
			r.resolve(ctx, env)

		default:
			log.Warn("Dropping channel message matching no known shape")
		}
	}
}

// admit registers ch as the active slave channel, superseding and closing
// any previous one.
func (r *Registry) admit(ctx context.Context, ch *slaveChannel) {
	r.mu.Lock()
	prev := r.active
	r.active = ch
	r.mu.Unlock()

	if prev != nil {
		clog.FromContext(ctx).Info("Superseding previous slave channel")
		prev.closeWithReason(websocket.CloseNormalClosure, CloseReasonSuperseded)
		r.emit(EventSlaveSuperseded)
	}
	clog.FromContext(ctx).Info("Slave channel authenticated")
	r.emit(EventSlaveConnected)
}

// drop clears the active slot if ch still owns it. Pending invocations are
// deliberately left to expire on their own timers rather than being failed
// eagerly, so a fast reconnect is not raced.
func (r *Registry) drop(ch *slaveChannel) {
	r.mu.Lock()
	owned := r.active == ch
	if owned {
		r.active = nil
	}
	r.mu.Unlock()
	if owned {
		r.emit(EventSlaveDisconnected)
	}
}

// resolve matches a reply to its pending invocation. Replies with no match
// (already timed out, or unknown) are discarded.
func (r *Registry) resolve(ctx context.Context, env Envelope) {
	key := env.CorrelationKey()
	r.mu.Lock()
	p, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	if !ok {
		clog.FromContext(ctx).With("id", key).Info("Discarding reply with no pending invocation")
		return
	}
	p.reply <- Reply{Result: env.Result, Error: env.Error}
}

// removePending deletes a pending invocation by key, if still present.
// Removal is idempotent: the reply path and the timeout path both call into
// the map under the mutex and whichever arrives first wins.
func (r *Registry) removePending(key string) {
	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()
}

func (r *Registry) emit(t EventType) {
	if r.notify != nil {
		r.notify(Event{Type: t, At: time.Now()})
	}
}

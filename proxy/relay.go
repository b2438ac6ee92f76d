/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reply is what the slave answered for one relayed invocation. Exactly one
// of Result and Error is set; both are passed through verbatim, the relay
// never reshapes tool output.
type Reply struct {
	Result json.RawMessage
	Error  *RPCError
}

// Relay forwards a method invocation to the active slave channel and waits
// for the correlated reply.
//
// It fails immediately with ErrNoSlave when no authenticated slave exists
// (it never queues waiting for one), with a wrapped write error when the
// channel write fails, and with ErrRelayTimeout when the reply deadline
// passes. A nil id means the caller did not supply a correlation identifier
// and one is generated.
func (r *Registry) Relay(ctx context.Context, method string, params, id json.RawMessage) (Reply, error) {
	r.mu.Lock()
	ch := r.active
	r.mu.Unlock()
	if ch == nil {
		return Reply{}, ErrNoSlave
	}

	if len(id) == 0 {
		generated, err := json.Marshal(uuid.NewString())
		if err != nil {
			return Reply{}, fmt.Errorf("generating correlation id: %w", err)
		}
		id = generated
	}
	key := string(id)

	p := &pendingInvocation{
		reply:       make(chan Reply, 1),
		submittedAt: time.Now(),
	}
	r.mu.Lock()
	if _, exists := r.pending[key]; exists {
		r.mu.Unlock()
		return Reply{}, fmt.Errorf("%w: %s", ErrDuplicateID, key)
	}
	r.pending[key] = p
	r.mu.Unlock()

	if err := ch.write(invocationEnvelope(method, params, id)); err != nil {
		r.removePending(key)
		return Reply{}, fmt.Errorf("writing to slave channel: %w", err)
	}

	timer := time.NewTimer(r.relayTimeout)
	defer timer.Stop()
	select {
	case rep := <-p.reply:
		return rep, nil
	case <-timer.C:
		r.removePending(key)
		return Reply{}, ErrRelayTimeout
	case <-ctx.Done():
		r.removePending(key)
		return Reply{}, ctx.Err()
	}
}

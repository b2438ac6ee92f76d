/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

// echoInvoker is a stand-in tool dispatcher that echoes the invocation back.
type echoInvoker struct{}

func (echoInvoker) Invoke(_ context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if method == "boom" {
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", method)}
	}
	if method == "fail" {
		return nil, fmt.Errorf("tool exploded")
	}
	payload := map[string]any{"method": method, "params": json.RawMessage(orNull(params))}
	return json.Marshal(payload)
}

func orNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

func waitForSlave(t *testing.T, r *Registry) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !r.HasSlave() {
		if time.Now().After(deadline) {
			t.Fatal("slave never became active")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSlaveServesRelayedInvocations(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	slave := NewSlave(url, "code1", echoInvoker{}, WithReconnectDelay(50*time.Millisecond))
	go slave.Run(ctx)
	waitForSlave(t, r)

	rep, err := r.Relay(ctx, "tools/list", json.RawMessage(`{"cursor":null}`), json.RawMessage("7"))
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	var decoded struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(rep.Result, &decoded); err != nil {
		t.Fatalf("unmarshaling relay result: %v", err)
	}
	if decoded.Method != "tools/list" {
		t.Errorf("slave saw method %q, want tools/list", decoded.Method)
	}
	if got := string(decoded.Params); got != `{"cursor":null}` {
		t.Errorf("slave saw params %s, want the verbatim payload", got)
	}
}

func TestSlaveReturnsTypedAndUntypedErrors(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	slave := NewSlave(url, "code1", echoInvoker{}, WithReconnectDelay(50*time.Millisecond))
	go slave.Run(ctx)
	waitForSlave(t, r)

	rep, err := r.Relay(ctx, "boom", nil, nil)
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if rep.Error == nil || rep.Error.Code != CodeMethodNotFound {
		t.Errorf("typed error payload = %+v, want code %d", rep.Error, CodeMethodNotFound)
	}

	rep, err = r.Relay(ctx, "fail", nil, nil)
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if rep.Error == nil || rep.Error.Code != CodeInternalError {
		t.Errorf("untyped error payload = %+v, want code %d", rep.Error, CodeInternalError)
	}
}

// gateInvoker holds the "slow" invocation open until released, so a test
// can interleave a second invocation behind it.
type gateInvoker struct {
	started chan struct{}
	release chan struct{}
}

func (g *gateInvoker) Invoke(_ context.Context, method string, _ json.RawMessage) (json.RawMessage, error) {
	if method == "slow" {
		close(g.started)
		<-g.release
		return json.RawMessage(`"slow done"`), nil
	}
	return json.RawMessage(`"fast done"`), nil
}

func TestSlaveServesInvocationsConcurrently(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	gate := &gateInvoker{started: make(chan struct{}), release: make(chan struct{})}
	slave := NewSlave(url, "code1", gate, WithReconnectDelay(50*time.Millisecond))
	go slave.Run(ctx)
	waitForSlave(t, r)

	type relayResult struct {
		rep Reply
		err error
	}
	slowDone := make(chan relayResult, 1)
	go func() {
		rep, err := r.Relay(ctx, "slow", nil, nil)
		slowDone <- relayResult{rep, err}
	}()

	// Wait until the slow invocation is executing, then relay another. It
	// must complete while the first is still held open.
	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("slow invocation never reached the slave")
	}
	rep, err := r.Relay(ctx, "fast", nil, nil)
	if err != nil {
		t.Fatalf("Relay(fast) error = %v", err)
	}
	if got := string(rep.Result); got != `"fast done"` {
		t.Errorf("Relay(fast) result = %s, want %q", got, `"fast done"`)
	}

	close(gate.release)
	select {
	case res := <-slowDone:
		if res.err != nil {
			t.Fatalf("Relay(slow) error = %v", res.err)
		}
		if got := string(res.rep.Result); got != `"slow done"` {
			t.Errorf("Relay(slow) result = %s, want %q", got, `"slow done"`)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("slow invocation never completed after release")
	}
}

func TestSlaveReconnectsAfterSupersession(t *testing.T) {
	r := NewRegistry([]string{"code1", "code2"}, WithRelayTimeout(500*time.Millisecond))
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	slave := NewSlave(url, "code1", echoInvoker{}, WithReconnectDelay(50*time.Millisecond))
	go slave.Run(ctx)
	waitForSlave(t, r)

	// Supersede the running slave with a bare channel, then drop it. The
	// slave's reconnect loop should re-establish an active connection.
	usurper := dialAndAuth(t, url, "code2")
	usurper.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("slave did not reconnect after supersession")
		}
		if rep, err := r.Relay(ctx, "ping", nil, nil); err == nil && rep.Error == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSlaveKeepsReconnectingAfterAuthRejection(t *testing.T) {
	// The credential is static configuration, so a rejected slave still
	// retries at the fixed cadence; fixing the whitelist on the master is
	// enough to let it in.
	r := NewRegistry([]string{"other"})
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	slave := NewSlave(url, "code1", echoInvoker{}, WithReconnectDelay(20*time.Millisecond))
	go slave.Run(ctx)

	time.Sleep(200 * time.Millisecond)
	if r.HasSlave() {
		t.Fatal("rejected slave must never be active")
	}

	// Simulate the master being reconfigured by accepting on a second
	// registry at the same credential.
	cancel()
	r2 := NewRegistry([]string{"code1"})
	url2 := newTestMaster(t, r2)

	ctx2, cancel2 := context.WithCancel(t.Context())
	defer cancel2()
	go NewSlave(url2, "code1", echoInvoker{}, WithReconnectDelay(20*time.Millisecond)).Run(ctx2)
	waitForSlave(t, r2)
}

func TestSlaveStopsOnContextCancel(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)

	ctx, cancel := context.WithCancel(t.Context())
	slave := NewSlave(url, "code1", echoInvoker{}, WithReconnectDelay(20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- slave.Run(ctx) }()
	waitForSlave(t, r)

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Run() returned nil after cancellation, want context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}

/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRelayFailsFastWithoutSlave(t *testing.T) {
	r := NewRegistry([]string{"code1"})

	start := time.Now()
	_, err := r.Relay(t.Context(), "tools/list", nil, nil)
	if !errors.Is(err, ErrNoSlave) {
		t.Fatalf("Relay() error = %v, want ErrNoSlave", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Relay() took %v, want sub-second rejection", elapsed)
	}
}

func TestRelayCorrelatesConcurrentReplies(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)
	conn := dialAndAuth(t, url, "code1")

	// Collect both invocations, then answer them in reverse order. Replies
	// must match by correlation identifier, not FIFO order.
	go func() {
		first := readEnvelope(t, conn)
		second := readEnvelope(t, conn)
		writeJSON(t, conn, replyEnvelope(json.RawMessage(`"reply-`+second.Method+`"`), nil, second.ID))
		writeJSON(t, conn, replyEnvelope(json.RawMessage(`"reply-`+first.Method+`"`), nil, first.ID))
	}()

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i, method := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := r.Relay(t.Context(), method, nil, nil)
			if err != nil {
				t.Errorf("Relay(%s) error = %v", method, err)
				return
			}
			results[i] = string(rep.Result)
		}()
	}
	wg.Wait()

	want := []string{`"reply-alpha"`, `"reply-beta"`}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("relay results (-want +got):\n%s", diff)
	}
}

func TestRelayTimeoutRemovesPending(t *testing.T) {
	r := NewRegistry([]string{"code1"}, WithRelayTimeout(100*time.Millisecond))
	url := newTestMaster(t, r)
	conn := dialAndAuth(t, url, "code1")

	// Capture the invocation but never reply.
	ids := make(chan json.RawMessage, 1)
	go func() {
		env := readEnvelope(t, conn)
		ids <- env.ID
	}()

	_, err := r.Relay(t.Context(), "tools/call", nil, nil)
	if !errors.Is(err, ErrRelayTimeout) {
		t.Fatalf("Relay() error = %v, want ErrRelayTimeout", err)
	}
	if n := r.PendingCount(); n != 0 {
		t.Fatalf("pending count after timeout = %d, want 0", n)
	}

	// A reply arriving after timeout-driven removal is discarded without
	// affecting anything else.
	late := <-ids
	writeJSON(t, conn, replyEnvelope(json.RawMessage(`"too late"`), nil, late))

	go func() {
		env := readEnvelope(t, conn)
		writeJSON(t, conn, replyEnvelope(json.RawMessage(`"on time"`), nil, env.ID))
	}()
	rep, err := r.Relay(t.Context(), "ping", nil, nil)
	if err != nil {
		t.Fatalf("Relay() after late reply error = %v", err)
	}
	if got := string(rep.Result); got != `"on time"` {
		t.Errorf("Relay() result = %s, want %q", got, `"on time"`)
	}
}

func TestRelayPreservesCallerSuppliedID(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)
	conn := dialAndAuth(t, url, "code1")

	go func() {
		env := readEnvelope(t, conn)
		if got := string(env.ID); got != "7" {
			t.Errorf("invocation id on the wire = %s, want 7", got)
		}
		writeJSON(t, conn, replyEnvelope(json.RawMessage(`{"tools":[]}`), nil, env.ID))
	}()

	rep, err := r.Relay(t.Context(), "tools/list", nil, json.RawMessage("7"))
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if got := string(rep.Result); got != `{"tools":[]}` {
		t.Errorf("Relay() result = %s, want {\"tools\":[]}", got)
	}
}

func TestRelayRejectsDuplicateID(t *testing.T) {
	r := NewRegistry([]string{"code1"}, WithRelayTimeout(time.Second))
	url := newTestMaster(t, r)
	conn := dialAndAuth(t, url, "code1")

	released := make(chan struct{})
	go func() {
		env := readEnvelope(t, conn)
		<-released
		writeJSON(t, conn, replyEnvelope(json.RawMessage(`1`), nil, env.ID))
	}()

	firstDone := make(chan error, 1)
	go func() {
		_, err := r.Relay(t.Context(), "slow", nil, json.RawMessage(`"dup"`))
		firstDone <- err
	}()

	// Wait for the first invocation to be registered.
	deadline := time.Now().Add(2 * time.Second)
	for r.PendingCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first invocation never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := r.Relay(t.Context(), "slow", nil, json.RawMessage(`"dup"`)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Relay() error = %v, want ErrDuplicateID", err)
	}

	close(released)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Relay() error = %v", err)
	}
}

func TestRelayPassesErrorPayloadThrough(t *testing.T) {
	r := NewRegistry([]string{"code1"})
	url := newTestMaster(t, r)
	conn := dialAndAuth(t, url, "code1")

	go func() {
		env := readEnvelope(t, conn)
		writeJSON(t, conn, replyEnvelope(nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found"}, env.ID))
	}()

	rep, err := r.Relay(t.Context(), "nope", nil, nil)
	if err != nil {
		t.Fatalf("Relay() error = %v", err)
	}
	if rep.Error == nil || rep.Error.Code != CodeMethodNotFound {
		t.Errorf("Relay() error payload = %+v, want code %d", rep.Error, CodeMethodNotFound)
	}
}

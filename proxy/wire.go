/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import (
	"encoding/json"
	"fmt"
)

// Control message types exchanged before a channel is authenticated.
const (
	TypeAuth        = "auth"
	TypeAuthSuccess = "auth_success"
	TypeAuthFailed  = "auth_failed"
)

// Close reasons carried on the websocket close frame.
const (
	CloseReasonSuperseded  = "superseded"
	CloseReasonAuthTimeout = "authentication timeout"
	CloseReasonAuthFailed  = "authentication failed"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCError is the JSON-RPC 2.0 error object carried in reply messages.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Envelope is the single wire shape for every message on the channel, in
// both directions. Control messages (auth handshake) set Type; relayed
// invocations set JSONRPC+Method; replies set JSONRPC and one of
// Result/Error. Using one shape on both ends lets the same reader code
// serve the master and the slave.
type Envelope struct {
	// Control handshake fields.
	Type      string `json:"type,omitempty"`
	SlaveCode string `json:"slaveCode,omitempty"`
	Message   string `json:"message,omitempty"`

	// JSON-RPC fields.
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	// ID is the correlation identifier. Kept raw so numeric and string ids
	// round-trip verbatim.
	ID json.RawMessage `json:"id,omitempty"`
}

// Kind classifies an envelope by which fields are populated.
type Kind int

const (
	// KindMalformed is an envelope matching none of the known shapes.
	KindMalformed Kind = iota
	// KindControl is an auth handshake message.
	KindControl
	// KindInvocation is a relayed method invocation.
	KindInvocation
	// KindReply is an invocation reply carrying a result or error.
	KindReply
)

// Kind reports which of the wire shapes this envelope represents.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Type != "":
		return KindControl
	case e.Method != "":
		return KindInvocation
	case len(e.ID) > 0 && (len(e.Result) > 0 || e.Error != nil):
		return KindReply
	default:
		return KindMalformed
	}
}

// CorrelationKey returns the pending-map key for this envelope's id. The raw
// JSON text is the key, so the numeric id 7 and the string id "7" never
// collide.
func (e *Envelope) CorrelationKey() string {
	return string(e.ID)
}

func invocationEnvelope(method string, params, id json.RawMessage) Envelope {
	return Envelope{JSONRPC: "2.0", Method: method, Params: params, ID: id}
}

func replyEnvelope(result json.RawMessage, rpcErr *RPCError, id json.RawMessage) Envelope {
	return Envelope{JSONRPC: "2.0", Result: result, Error: rpcErr, ID: id}
}

/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/invopop/jsonschema"

	"github.com/javimosch/mr-pilot/proxy"
)

// ProtocolVersion is reported by the initialize method.
const ProtocolVersion = "2024-11-05"

// Handler executes one method invocation.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Tool is a callable tool with its schema, as listed by tools/list.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     Handler
}

// Dispatcher routes method names to handlers. Methods are an explicit map,
// not reflection; unknown names fail with a method-not-found error.
type Dispatcher struct {
	name    string
	version string

	mu      sync.RWMutex
	methods map[string]Handler
	tools   map[string]Tool
	order   []string
}

// New creates a dispatcher with the built-in protocol methods registered.
func New(name, version string) *Dispatcher {
	d := &Dispatcher{
		name:    name,
		version: version,
		methods: map[string]Handler{},
		tools:   map[string]Tool{},
	}
	d.methods["initialize"] = d.handleInitialize
	d.methods["ping"] = d.handlePing
	d.methods["tools/list"] = d.handleToolsList
	d.methods["tools/call"] = d.handleToolsCall
	return d
}

// RegisterTool adds a tool to the catalog. Registering a name twice
// replaces the previous tool.
func (d *Dispatcher) RegisterTool(t Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tools[t.Name]; !exists {
		d.order = append(d.order, t.Name)
	}
	d.tools[t.Name] = t
}

// Invoke executes the named method. It satisfies proxy.Invoker, so a slave
// serves relayed invocations through the exact same entry point the
// standalone front-end uses.
func (d *Dispatcher) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	d.mu.RLock()
	h, ok := d.methods[method]
	d.mu.RUnlock()
	if !ok {
		return nil, &proxy.RPCError{
			Code:    proxy.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", method),
		}
	}
	return h(ctx, params)
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (d *Dispatcher) handleInitialize(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"protocolVersion": ProtocolVersion,
		"serverInfo":      serverInfo{Name: d.name, Version: d.version},
		"capabilities":    map[string]any{"tools": map[string]any{}},
	})
}

func (d *Dispatcher) handlePing(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

type toolDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema,omitempty"`
}

func (d *Dispatcher) handleToolsList(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tools := make([]toolDescriptor, 0, len(d.order))
	for _, name := range d.order {
		t := d.tools[name]
		tools = append(tools, toolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return json.Marshal(map[string]any{"tools": tools})
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var call toolCallParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &proxy.RPCError{
			Code:    proxy.CodeInvalidParams,
			Message: fmt.Sprintf("invalid tools/call params: %v", err),
		}
	}
	d.mu.RLock()
	tool, ok := d.tools[call.Name]
	d.mu.RUnlock()
	if !ok {
		return nil, &proxy.RPCError{
			Code:    proxy.CodeInvalidParams,
			Message: fmt.Sprintf("unknown tool: %q", call.Name),
		}
	}

	clog.FromContext(ctx).With("tool", call.Name).Info("Executing tool")
	return tool.Handler(ctx, call.Arguments)
}

// Package mcpproxy implements the stdio JSON-RPC splice that sits between a
// host application (downstream) and a tool server subprocess (upstream),
// routing tools/call through a runtime.Session and annotating tools/list
// with derived security profiles (spec.md §4.8).
package mcpproxy

import "encoding/json"

// Message is the JSON-RPC 2.0 envelope. We parse into this first and
// dispatch on Method.
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *RPCError        `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Synthesized error codes (spec.md §6).
const (
	CodePolicyDeny     = -32600
	CodeNeedsApproval  = -32001
	CodeUpstreamFailed = -32603
)

const (
	MethodToolsCall = "tools/call"
	MethodToolsList = "tools/list"
)

// CallToolParams is the params of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolDefinition is one entry of a tools/list response, as seen on the
// wire. SecurityProfile is added by the proxy, never present upstream.
type ToolDefinition struct {
	Name            string          `json:"name"`
	Title           string          `json:"title,omitempty"`
	Description     string          `json:"description,omitempty"`
	InputSchema     json.RawMessage `json:"inputSchema,omitempty"`
	SecurityProfile any             `json:"jade_security,omitempty"`
}

// ListToolsResult is the result payload of a tools/list response.
type ListToolsResult struct {
	Tools      []ToolDefinition `json:"tools"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

func classify(msg *Message) string {
	if msg.ID == nil && msg.Method != "" {
		return "notification"
	}
	if msg.ID != nil && msg.Method == "" {
		return "response"
	}
	if msg.ID != nil {
		switch msg.Method {
		case MethodToolsCall:
			return "tools/call"
		case MethodToolsList:
			return "tools/list"
		default:
			return "request"
		}
	}
	return "unknown"
}

func newErrorResponse(id *json.RawMessage, code int, message string, data any) ([]byte, error) {
	resp := Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
	return json.Marshal(resp)
}

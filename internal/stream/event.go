package stream

import "encoding/json"

type Kind string

const (
	KindTextDelta  Kind = "text_delta"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindThinking   Kind = "thinking"
	KindDone       Kind = "done"
)

// Event is one decoded frame of the agent's event stream. The concrete type
// is one of TextDelta, ToolCall, ToolResult, Thinking, Done or Unknown.
type Event interface {
	Kind() Kind
}

// TextDelta is a fragment of the assistant's reply.
type TextDelta struct {
	Text  string `json:"Text"`
	Index int    `json:"Index"`
}

// ToolCall announces that the agent is invoking a tool.
type ToolCall struct {
	ToolCallID string         `json:"ToolCallId"`
	ToolName   string         `json:"ToolName"`
	Args       map[string]any `json:"Args"`
}

// ToolResult carries a tool's output. Result is the raw string when the
// server sent a JSON string and the compact JSON text of the value otherwise.
type ToolResult struct {
	ToolCallID string `json:"ToolCallId"`
	ToolName   string `json:"ToolName"`
	Result     string `json:"Result"`
	Error      string `json:"Error"`
}

type Thinking struct {
	Text string `json:"Text"`
}

// Done is the server's end-of-stream marker.
type Done struct{}

// Unknown holds any event kind the client does not model, including frames
// with no type at all.
type Unknown struct {
	Type    string
	Payload json.RawMessage
}

func (TextDelta) Kind() Kind  { return KindTextDelta }
func (ToolCall) Kind() Kind   { return KindToolCall }
func (ToolResult) Kind() Kind { return KindToolResult }
func (Thinking) Kind() Kind   { return KindThinking }
func (Done) Kind() Kind       { return KindDone }
func (u Unknown) Kind() Kind  { return Kind(u.Type) }

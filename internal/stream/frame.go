package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DataPrefix marks the lines of an SSE body that carry an event.
const DataPrefix = "data: "

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wireEnvelope is envelope as received. type stays raw so a non-string kind
// still yields an event instead of failing the whole frame.
type wireEnvelope struct {
	Type    json.RawMessage `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (w wireEnvelope) envelope() envelope {
	env := envelope{Payload: w.Payload}
	if err := json.Unmarshal(w.Type, &env.Type); err != nil {
		env.Type = ""
	}
	return env
}

// ParseFrame decodes a single line of the stream. It reports false for lines
// that carry no event: blanks, non-data fields, comments and frames whose
// body is not a JSON object.
func ParseFrame(line []byte) (Event, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return nil, false
	}

	body := bytes.TrimSpace(line[len(DataPrefix):])
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}

	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	return decode(env.envelope()), true
}

func decode(env envelope) Event {
	switch Kind(env.Type) {
	case KindTextDelta:
		var p TextDelta
		decodePayload(env.Payload, &p)
		return p
	case KindToolCall:
		var p ToolCall
		decodePayload(env.Payload, &p)
		return p
	case KindToolResult:
		var p struct {
			ToolCallID string          `json:"ToolCallId"`
			ToolName   string          `json:"ToolName"`
			Result     json.RawMessage `json:"Result"`
			Error      string          `json:"Error"`
		}
		decodePayload(env.Payload, &p)
		return ToolResult{
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
			Result:     resultText(p.Result),
			Error:      p.Error,
		}
	case KindThinking:
		var p Thinking
		decodePayload(env.Payload, &p)
		return p
	case KindDone:
		return Done{}
	default:
		return Unknown{Type: env.Type, Payload: env.Payload}
	}
}

// decodePayload fills v from raw. Missing keys and values of the wrong type
// leave the corresponding fields at their zero value.
func decodePayload(raw json.RawMessage, v any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, v)
}

func resultText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Encode renders ev as the JSON envelope the server sends after DataPrefix.
func Encode(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("encoding event: nil event")
	}

	env := envelope{Type: string(ev.Kind())}
	switch e := ev.(type) {
	case Unknown:
		env.Payload = e.Payload
	case Done:
	default:
		p, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", env.Type, err)
		}
		env.Payload = p
	}
	return json.Marshal(env)
}

package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// messageJSON is the wire shape of Message.
// A message with a single text part is stored in the short form {"role","text"}.
type messageJSON struct {
	Role  Role              `json:"role"`
	Text  string            `json:"text,omitempty"`
	Parts []json.RawMessage `json:"parts,omitempty"`
}

type partTypeJSON struct {
	Type string `json:"type"`
}

// TextContentJSON represents the JSON structure for text content
type TextContentJSON struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// ToolCallJSONOrdered matches the expected field order for marshaling
// function, id, type
type ToolCallJSONOrdered struct {
	FunctionCall *FunctionCall `json:"function"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
}

// ToolCallContentJSON represents the JSON structure for tool call content
type ToolCallContentJSON struct {
	Type     string              `json:"type"`
	ToolCall ToolCallJSONOrdered `json:"tool_call"`
}

// ToolResponseJSONOrdered matches the expected field order for marshaling
// tool_call_id, name, content
type ToolResponseJSONOrdered struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// ToolResponseContentJSON represents the JSON structure for tool response content
type ToolResponseContentJSON struct {
	Type         string                  `json:"type"`
	ToolResponse ToolResponseJSONOrdered `json:"tool_response"`
}

// MarshalJSON implements json.Marshaler for Message
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) == 1 {
		if tp, ok := m.Parts[0].(TextContent); ok && tp.Text != "" {
			return json.Marshal(messageJSON{Role: m.Role, Text: tp.Text})
		}
	}

	res := messageJSON{
		Role:  m.Role,
		Parts: make([]json.RawMessage, 0, len(m.Parts)),
	}
	for _, p := range m.Parts {
		js, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal %T", p)
		}
		res.Parts = append(res.Parts, js)
	}
	return json.Marshal(res)
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var msgJSON messageJSON
	if err := json.Unmarshal(data, &msgJSON); err != nil {
		return errors.WithStack(err)
	}

	switch msgJSON.Role {
	case RoleAI, RoleHuman, RoleSystem, RoleTool:
	default:
		return errors.Wrapf(ErrUnexpectedRole, "role %q", msgJSON.Role)
	}

	m.Role = msgJSON.Role
	m.Parts = nil

	if msgJSON.Text != "" {
		m.Parts = []ContentPart{TextContent{Text: msgJSON.Text}}
		return nil
	}

	for _, raw := range msgJSON.Parts {
		part, err := unmarshalContentPart(raw)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}

func unmarshalContentPart(raw json.RawMessage) (ContentPart, error) {
	var typ partTypeJSON
	if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, errors.WithStack(err)
	}

	switch typ.Type {
	case "text", "":
		var tc TextContent
		if err := tc.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return tc, nil
	case "tool_call":
		var tc ToolCall
		if err := tc.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return tc, nil
	case "tool_response":
		var tr ToolCallResponse
		if err := tr.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		return tr, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", typ.Type)
	}
}

// MarshalJSON implements json.Marshaler for TextContent
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(TextContentJSON{
		Text: tc.Text,
		Type: "text",
	})
}

// UnmarshalJSON implements json.Unmarshaler for TextContent
func (tc *TextContent) UnmarshalJSON(data []byte) error {
	var textJSON TextContentJSON
	if err := json.Unmarshal(data, &textJSON); err != nil {
		return errors.WithStack(err)
	}
	if textJSON.Type != "text" && textJSON.Type != "" {
		return errors.Newf("invalid type for TextContent: %v", textJSON.Type)
	}
	tc.Text = textJSON.Text
	return nil
}

// MarshalJSON implements json.Marshaler for ToolCall
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToolCallContentJSON{
		Type: "tool_call",
		ToolCall: ToolCallJSONOrdered{
			FunctionCall: tc.FunctionCall,
			ID:           tc.ID,
			Type:         tc.Type,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCall
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var callJSON ToolCallContentJSON
	if err := json.Unmarshal(data, &callJSON); err != nil {
		return errors.WithStack(err)
	}
	if callJSON.Type != "tool_call" {
		return errors.Newf("invalid type for ToolCall: %v", callJSON.Type)
	}
	if callJSON.ToolCall.ID == "" {
		return errors.New("missing id field in ToolCall")
	}

	tc.ID = callJSON.ToolCall.ID
	tc.Type = callJSON.ToolCall.Type
	tc.FunctionCall = callJSON.ToolCall.FunctionCall
	if tc.FunctionCall == nil {
		tc.FunctionCall = &FunctionCall{}
	}
	return nil
}

// MarshalJSON implements json.Marshaler for ToolCallResponse
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToolResponseContentJSON{
		Type: "tool_response",
		ToolResponse: ToolResponseJSONOrdered{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
			Content:    tc.Content,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCallResponse
func (tc *ToolCallResponse) UnmarshalJSON(data []byte) error {
	var toolResponseJSON ToolResponseContentJSON
	if err := json.Unmarshal(data, &toolResponseJSON); err != nil {
		return errors.WithStack(err)
	}
	if toolResponseJSON.Type != "tool_response" {
		return errors.Newf("invalid type for ToolCallResponse: %v", toolResponseJSON.Type)
	}
	if toolResponseJSON.ToolResponse.ToolCallID == "" {
		return errors.New("missing tool_call_id field in ToolCallResponse")
	}
	if toolResponseJSON.ToolResponse.Name == "" {
		return errors.New("missing name field in ToolCallResponse")
	}
	tc.ToolCallID = toolResponseJSON.ToolResponse.ToolCallID
	tc.Name = toolResponseJSON.ToolResponse.Name
	tc.Content = toolResponseJSON.ToolResponse.Content
	return nil
}

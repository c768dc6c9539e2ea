package turns

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool call, fed back to the model.
// Content is the tool's raw string output (usually a JSON document).
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Payload wraps Content as {"content": ...}. JSON content is embedded as a
// value; anything else is embedded as a string.
func (r ToolResult) Payload() map[string]any {
	var decoded any
	if err := json.Unmarshal([]byte(r.Content), &decoded); err == nil {
		return map[string]any{"content": decoded}
	}
	return map[string]any{"content": r.Content}
}

// Turn is one entry of a conversation history. Exactly one of Text, Call or
// Result is meaningful, depending on Role and whether the model asked for a
// tool.
type Turn struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Text      string      `json:"text,omitempty"`
	Call      *ToolCall   `json:"call,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func newTurn(role Role) Turn {
	return Turn{ID: uuid.NewString(), Role: role, CreatedAt: time.Now()}
}

func NewUserText(text string) Turn {
	t := newTurn(RoleUser)
	t.Text = text
	return t
}

func NewModelText(text string) Turn {
	t := newTurn(RoleModel)
	t.Text = text
	return t
}

// NewToolCall records a model turn that requests a tool. A call without an
// ID gets a generated one so results can be paired with it.
func NewToolCall(call ToolCall) Turn {
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	t := newTurn(RoleModel)
	t.Call = &call
	return t
}

func NewToolResult(result ToolResult) Turn {
	t := newTurn(RoleFunction)
	t.Result = &result
	return t
}

// IsText reports whether t carries plain text rather than a tool exchange.
func (t Turn) IsText() bool {
	return t.Call == nil && t.Result == nil
}

// Visible filters history down to the turns a chat UI shows: user text and
// model text. Tool calls and results are internal.
func Visible(history []Turn) []Turn {
	ret := make([]Turn, 0, len(history))
	for _, t := range history {
		if t.IsText() && (t.Role == RoleUser || t.Role == RoleModel) && t.Text != "" {
			ret = append(ret, t)
		}
	}
	return ret
}

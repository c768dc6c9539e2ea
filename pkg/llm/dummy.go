package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/moviechat/pkg/tools"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

// Dummy is an offline model for local runs and tests. A user message that
// starts with SELECT is forwarded to query_database when that tool is
// offered, and the tool result is echoed back; anything else is echoed with
// a prefix.
type Dummy struct {
	Prefix string
}

var _ Model = (*Dummy)(nil)

func NewDummy(prefix string) *Dummy {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &Dummy{Prefix: prefix}
}

func (d *Dummy) Complete(_ context.Context, req Request) (turns.Turn, error) {
	if len(req.History) == 0 {
		return turns.NewModelText(d.Prefix + " <empty prompt>"), nil
	}
	last := req.History[len(req.History)-1]

	if last.Result != nil {
		return turns.NewModelText(fmt.Sprintf("Result of `%s`:\n\n```\n%s\n```", last.Result.Name, last.Result.Content)), nil
	}

	text := strings.TrimSpace(last.Text)
	if strings.HasPrefix(strings.ToUpper(text), "SELECT") && offers(req.Tools, tools.QueryDatabaseName) {
		return turns.NewToolCall(turns.ToolCall{
			Name:      tools.QueryDatabaseName,
			Arguments: map[string]any{"sql_query": text},
		}), nil
	}
	if text == "" {
		text = "<empty prompt>"
	}
	return turns.NewModelText(fmt.Sprintf("%s %s", d.Prefix, text)), nil
}

func offers(defs []tools.Definition, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

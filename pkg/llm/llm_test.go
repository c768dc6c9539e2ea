package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/moviechat/pkg/tools"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

type nopQuerier struct{}

func (nopQuerier) Query(context.Context, string) string { return "[]" }

type nopTickets struct{}

func (nopTickets) CreateSupportTicket(context.Context, string, string) string { return "{}" }

func movieDefinitions(t *testing.T) []tools.Definition {
	t.Helper()
	r, err := tools.NewMovieRegistry(nopQuerier{}, nopTickets{})
	require.NoError(t, err)
	return r.Definitions()
}

func sampleHistory() []turns.Turn {
	call := turns.NewToolCall(turns.ToolCall{ID: "call_1", Name: "query_database", Arguments: map[string]any{"sql_query": "SELECT COUNT(*) FROM movies"}})
	return []turns.Turn{
		turns.NewModelText("Hello!"),
		turns.NewUserText("How many movies?"),
		call,
		turns.NewToolResult(turns.ToolResult{CallID: "call_1", Name: "query_database", Content: `[{"COUNT(*)":3}]`}),
	}
}

func TestGeminiContents(t *testing.T) {
	contents := geminiContents(sampleHistory())
	require.Len(t, contents, 4)
	require.Equal(t, "model", contents[0].Role)
	require.Equal(t, "user", contents[1].Role)

	require.Equal(t, "model", contents[2].Role)
	fc, ok := contents[2].Parts[0].(genai.FunctionCall)
	require.True(t, ok)
	require.Equal(t, "query_database", fc.Name)

	require.Equal(t, "user", contents[3].Role)
	fr, ok := contents[3].Parts[0].(genai.FunctionResponse)
	require.True(t, ok)
	rows, ok := fr.Response["content"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestGeminiContents_MergesSameRole(t *testing.T) {
	contents := geminiContents([]turns.Turn{
		turns.NewUserText("one"),
		turns.NewUserText("two"),
	})
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
}

func TestGeminiTurn(t *testing.T) {
	tt := geminiTurn([]genai.Part{genai.Text("There are "), genai.Text("3 movies.")})
	require.Nil(t, tt.Call)
	require.Equal(t, "There are 3 movies.", tt.Text)

	tt = geminiTurn([]genai.Part{genai.FunctionCall{Name: "query_database", Args: map[string]any{"sql_query": "SELECT 1"}}})
	require.NotNil(t, tt.Call)
	require.Equal(t, "query_database", tt.Call.Name)
	require.NotEmpty(t, tt.Call.ID)
}

func TestGeminiDeclarations(t *testing.T) {
	decls := geminiDeclarations(movieDefinitions(t))
	require.Len(t, decls, 2)
	require.Equal(t, "query_database", decls[0].Name)
	require.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
	require.Equal(t, genai.TypeString, decls[0].Parameters.Properties["sql_query"].Type)
	require.Equal(t, []string{"sql_query"}, decls[0].Parameters.Required)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-flash-latest")
	require.Error(t, err)
}

func TestOpenAI_ToolCallRoundTrip(t *testing.T) {
	var seen struct {
		Messages []map[string]any `json:"messages"`
		Tools    []map[string]any `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "x", "object": "chat.completion", "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant",
				"tool_calls": [{"id": "call_9", "type": "function",
					"function": {"name": "query_database", "arguments": "{\"sql_query\":\"SELECT 1\"}"}}]
			}}]
		}`))
	}))
	defer srv.Close()

	m, err := NewOpenAI("key", "gpt-4o-mini", srv.URL, srv.Client())
	require.NoError(t, err)

	turn, err := m.Complete(context.Background(), Request{
		SystemPrompt: "system",
		History:      sampleHistory(),
		Tools:        movieDefinitions(t),
	})
	require.NoError(t, err)
	require.NotNil(t, turn.Call)
	require.Equal(t, "call_9", turn.Call.ID)
	require.Equal(t, map[string]any{"sql_query": "SELECT 1"}, turn.Call.Arguments)

	require.Len(t, seen.Messages, 5)
	require.Equal(t, "system", seen.Messages[0]["role"])
	require.Equal(t, "assistant", seen.Messages[1]["role"])
	require.Equal(t, "tool", seen.Messages[4]["role"])
	require.Equal(t, "call_1", seen.Messages[4]["tool_call_id"])
	require.Len(t, seen.Tools, 2)
}

func TestOpenAI_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"There are 3 movies."}}]}`))
	}))
	defer srv.Close()

	m, err := NewOpenAI("key", "gpt-4o-mini", srv.URL, srv.Client())
	require.NoError(t, err)
	turn, err := m.Complete(context.Background(), Request{History: []turns.Turn{turns.NewUserText("How many?")}})
	require.NoError(t, err)
	require.Nil(t, turn.Call)
	require.Equal(t, "There are 3 movies.", turn.Text)
}

func TestDummy(t *testing.T) {
	d := NewDummy("")
	defs := movieDefinitions(t)

	turn, err := d.Complete(context.Background(), Request{History: []turns.Turn{turns.NewUserText("hi there")}, Tools: defs})
	require.NoError(t, err)
	require.Equal(t, "Dummy response: hi there", turn.Text)

	turn, err = d.Complete(context.Background(), Request{History: []turns.Turn{turns.NewUserText("select count(*) from movies")}, Tools: defs})
	require.NoError(t, err)
	require.NotNil(t, turn.Call)
	require.Equal(t, tools.QueryDatabaseName, turn.Call.Name)

	turn, err = d.Complete(context.Background(), Request{History: sampleHistory(), Tools: defs})
	require.NoError(t, err)
	require.Contains(t, turn.Text, `[{"COUNT(*)":3}]`)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(context.Background(), Settings{Provider: "dummy"})
	require.NoError(t, err)
	require.IsType(t, &Dummy{}, m)

	_, err = NewModel(context.Background(), Settings{Provider: "openai"})
	require.Error(t, err)

	_, err = NewModel(context.Background(), Settings{Provider: "nope"})
	require.Error(t, err)
}

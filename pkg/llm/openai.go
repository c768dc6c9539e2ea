package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/moviechat/pkg/turns"
)

// OpenAI talks to the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Model = (*OpenAI)(nil)

// NewOpenAI builds a client. baseURL may be empty for the public endpoint.
func NewOpenAI(apiKey, model, baseURL string, httpClient *http.Client) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (turns.Turn, error) {
	msgs, err := openAIMessages(req)
	if err != nil {
		return turns.Turn{}, err
	}
	creq := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	for _, d := range req.Tools {
		creq.Tools = append(creq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	log.Debug().Str("component", "llm").Str("provider", "openai").Int("messages", len(msgs)).Msg("creating chat completion")
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return turns.Turn{}, errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return turns.Turn{}, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return turns.Turn{}, errors.Wrapf(err, "decode arguments of %s", tc.Function.Name)
			}
		}
		return turns.NewToolCall(turns.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}), nil
	}
	return turns.NewModelText(msg.Content), nil
}

func openAIMessages(req Request) ([]openai.ChatCompletionMessage, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, t := range req.History {
		switch {
		case t.Call != nil:
			callArgs := t.Call.Arguments
			if callArgs == nil {
				callArgs = map[string]any{}
			}
			args, err := json.Marshal(callArgs)
			if err != nil {
				return nil, errors.Wrapf(err, "encode arguments of %s", t.Call.Name)
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       t.Call.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: t.Call.Name, Arguments: string(args)},
				}},
			})
		case t.Result != nil:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Name:       t.Result.Name,
				ToolCallID: t.Result.CallID,
				Content:    t.Result.Content,
			})
		case t.Role == turns.RoleModel:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Text})
		default:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Text})
		}
	}
	return msgs, nil
}

package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/go-go-golems/moviechat/pkg/tools"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

// Gemini talks to Google's generative language API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Model = (*Gemini)(nil)

func NewGemini(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "gemini init")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Complete(ctx context.Context, req Request) (turns.Turn, error) {
	model := g.client.GenerativeModel(g.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	contents := geminiContents(req.History)
	if len(contents) == 0 {
		return turns.Turn{}, errors.New("gemini: empty history")
	}
	last := contents[len(contents)-1]
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]

	log.Debug().Str("component", "llm").Str("provider", "gemini").Int("history", len(cs.History)).Msg("sending message")
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return turns.Turn{}, errors.Wrap(err, "gemini generate")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return turns.Turn{}, ErrEmptyResponse
	}
	return geminiTurn(resp.Candidates[0].Content.Parts), nil
}

// geminiContents maps history to Gemini contents. Function results travel as
// user content; consecutive turns of the same role are merged.
func geminiContents(history []turns.Turn) []*genai.Content {
	var ret []*genai.Content
	for _, t := range history {
		var role string
		var part genai.Part
		switch {
		case t.Call != nil:
			role = "model"
			part = genai.FunctionCall{Name: t.Call.Name, Args: t.Call.Arguments}
		case t.Result != nil:
			role = "user"
			part = genai.FunctionResponse{Name: t.Result.Name, Response: t.Result.Payload()}
		case t.Role == turns.RoleModel:
			role = "model"
			part = genai.Text(t.Text)
		default:
			role = "user"
			part = genai.Text(t.Text)
		}
		if n := len(ret); n > 0 && ret[n-1].Role == role {
			ret[n-1].Parts = append(ret[n-1].Parts, part)
			continue
		}
		ret = append(ret, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}
	return ret
}

// geminiTurn picks the first function call in parts, or joins the text.
func geminiTurn(parts []genai.Part) turns.Turn {
	var text []string
	for _, p := range parts {
		switch v := p.(type) {
		case genai.FunctionCall:
			return turns.NewToolCall(turns.ToolCall{Name: v.Name, Arguments: v.Args})
		case *genai.FunctionCall:
			return turns.NewToolCall(turns.ToolCall{Name: v.Name, Arguments: v.Args})
		case genai.Text:
			text = append(text, string(v))
		}
	}
	return turns.NewModelText(strings.Join(text, ""))
}

func geminiDeclarations(defs []tools.Definition) []*genai.FunctionDeclaration {
	ret := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		ret = append(ret, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  geminiSchema(d.Parameters),
		})
	}
	return ret
}

func geminiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        geminiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	for _, e := range s.Enum {
		if str, ok := e.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}
	if s.Items != nil {
		out.Items = geminiSchema(s.Items)
	}
	if s.Properties != nil {
		out.Properties = map[string]*genai.Schema{}
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = geminiSchema(pair.Value)
		}
	}
	return out
}

func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

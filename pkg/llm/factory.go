package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type Settings struct {
	Provider      string
	Model         string
	GoogleAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewModel returns the model for s.Provider: gemini (alias google), openai
// or dummy.
func NewModel(ctx context.Context, s Settings) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	log.Info().Str("component", "llm").Str("provider", provider).Str("model", s.Model).Msg("initializing model")

	switch provider {
	case "gemini", "google", "":
		m, err := NewGemini(ctx, s.GoogleAPIKey, s.Model)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "openai":
		model := s.Model
		if model == "" || strings.HasPrefix(model, "gemini") {
			model = DefaultOpenAIModel
		}
		m, err := NewOpenAI(s.OpenAIAPIKey, model, s.OpenAIBaseURL, nil)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "dummy":
		return NewDummy(""), nil
	}
	return nil, errors.Errorf("unknown model provider %q", s.Provider)
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/moviechat/pkg/events"
	"github.com/go-go-golems/moviechat/pkg/llm"
	"github.com/go-go-golems/moviechat/pkg/session"
	"github.com/go-go-golems/moviechat/pkg/tools"
	"github.com/go-go-golems/moviechat/pkg/turns"
)

const (
	DefaultMaxIterations = 10

	FallbackText = "Sorry, I'm not sure how to respond to that."
	GiveUpText   = "Sorry, this request needed too many steps. Please try rephrasing it."
)

var (
	// ErrUnknownTool ends a pass in which the model asked for an unregistered
	// tool again after being told it does not exist.
	ErrUnknownTool = errors.New("model requested an unknown tool")
	ErrEmptyPrompt = errors.New("empty prompt")
)

type Options struct {
	SystemPrompt  string
	MaxIterations int
	// Publisher receives progress events; nil disables them.
	Publisher events.Publisher
}

// Agent drives the tool-calling loop for one user message at a time.
type Agent struct {
	model    llm.Model
	registry *tools.Registry
	opts     Options
}

func New(model llm.Model, registry *tools.Registry, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Agent{model: model, registry: registry, opts: opts}
}

// RunTurn answers prompt within s. The model is called with the full
// history until it produces text, requesting tools along the way.
//
// The session only grows when the pass succeeds: the user turn, every tool
// exchange and the final answer are appended together. On error the session
// is left exactly as it was.
func (a *Agent) RunTurn(ctx context.Context, s *session.Session, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	s.Lock()
	defer s.Unlock()

	logger := log.With().Str("component", "agent").Str("session_id", s.ID).Logger()

	history := s.History()
	pending := []turns.Turn{turns.NewUserText(prompt)}
	defs := a.registry.Definitions()

	started := events.New(s.ID, events.TypeTurnStarted)
	started.Text = prompt
	a.publish(ctx, started)

	unknownSeen := false
	for i := 0; i < a.opts.MaxIterations; i++ {
		req := llm.Request{
			SystemPrompt: a.opts.SystemPrompt,
			History:      concat(history, pending),
			Tools:        defs,
		}
		resp, err := a.model.Complete(ctx, req)
		if err != nil {
			return "", a.fail(ctx, s.ID, errors.Wrap(err, "model call"))
		}

		if resp.Call == nil {
			text := resp.Text
			if strings.TrimSpace(text) == "" {
				logger.Warn().Int("iteration", i).Msg("model finished the tool loop without a text response")
				text = FallbackText
			}
			return a.commit(ctx, s, pending, text), nil
		}

		call := *resp.Call
		pending = append(pending, resp)
		logger.Info().Str("tool", call.Name).Interface("args", call.Arguments).Msg("model requested tool")

		tool, ok := a.registry.Lookup(call.Name)
		if !ok {
			logger.Error().Str("tool", call.Name).Msg("unknown tool requested")
			if unknownSeen {
				return "", a.fail(ctx, s.ID, errors.Wrapf(ErrUnknownTool, "%q", call.Name))
			}
			unknownSeen = true
			pending = append(pending, turns.NewToolResult(turns.ToolResult{
				CallID:  call.ID,
				Name:    call.Name,
				Content: fmt.Sprintf("Error: Unknown tool '%s'", call.Name),
			}))
			continue
		}

		ev := events.New(s.ID, events.TypeToolCall)
		ev.Tool = call.Name
		ev.Arguments = call.Arguments
		a.publish(ctx, ev)

		out, err := tool.Invoke(ctx, call.Arguments)
		if err != nil {
			logger.Warn().Err(err).Str("tool", call.Name).Msg("rejected tool arguments")
			out = errorPayload(err.Error())
		}
		logger.Debug().Str("tool", call.Name).Str("result", out).Msg("tool finished")

		ev = events.New(s.ID, events.TypeToolResult)
		ev.Tool = call.Name
		ev.Text = out
		a.publish(ctx, ev)

		pending = append(pending, turns.NewToolResult(turns.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: out,
		}))
	}

	logger.Warn().Int("max_iterations", a.opts.MaxIterations).Msg("tool loop hit the iteration bound")
	return a.commit(ctx, s, pending, GiveUpText), nil
}

func (a *Agent) commit(ctx context.Context, s *session.Session, pending []turns.Turn, text string) string {
	pending = append(pending, turns.NewModelText(text))
	s.Append(pending...)

	ev := events.New(s.ID, events.TypeTurnFinished)
	ev.Text = text
	a.publish(ctx, ev)
	return text
}

func (a *Agent) fail(ctx context.Context, sessionID string, err error) error {
	log.Error().Err(err).Str("component", "agent").Str("session_id", sessionID).Msg("chat pass failed")
	ev := events.New(sessionID, events.TypeTurnFailed)
	ev.Error = err.Error()
	a.publish(context.WithoutCancel(ctx), ev)
	return err
}

func (a *Agent) publish(ctx context.Context, e events.Event) {
	if a.opts.Publisher == nil {
		return
	}
	if err := a.opts.Publisher.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("component", "agent").Str("type", string(e.Type)).Msg("could not publish event")
	}
}

func concat(a, b []turns.Turn) []turns.Turn {
	ret := make([]turns.Turn, 0, len(a)+len(b))
	ret = append(ret, a...)
	return append(ret, b...)
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/moviechat/pkg/agent"
	"github.com/go-go-golems/moviechat/pkg/config"
	"github.com/go-go-golems/moviechat/pkg/events"
	"github.com/go-go-golems/moviechat/pkg/llm"
	"github.com/go-go-golems/moviechat/pkg/moviedb"
	"github.com/go-go-golems/moviechat/pkg/persistence/eventlog"
	"github.com/go-go-golems/moviechat/pkg/prompts"
	"github.com/go-go-golems/moviechat/pkg/redisstream"
	"github.com/go-go-golems/moviechat/pkg/session"
	"github.com/go-go-golems/moviechat/pkg/ticket"
	"github.com/go-go-golems/moviechat/pkg/tools"
)

// App holds the wired chat components shared by the CLI and the web server.
type App struct {
	Settings *config.Settings
	Prompts  *prompts.Prompts
	Store    *moviedb.Store
	Tickets  *ticket.Client
	Registry *tools.Registry
	Model    llm.Model
	Bus      *events.Bus
	// EventLog is nil unless event-log-db is set.
	EventLog *eventlog.Store
	Sessions *session.Manager
	Agent    *agent.Agent
}

// Build wires everything from settings, creating the configured model.
func Build(ctx context.Context, s *config.Settings) (*App, error) {
	model, err := llm.NewModel(ctx, llm.Settings{
		Provider:     s.ModelProvider,
		Model:        s.ModelName,
		GoogleAPIKey: s.GoogleAPIKey,
		OpenAIAPIKey: s.OpenAIAPIKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init model")
	}
	return BuildWithModel(ctx, s, model)
}

// BuildWithModel wires everything around an existing model.
func BuildWithModel(ctx context.Context, s *config.Settings, model llm.Model) (*App, error) {
	p, err := prompts.LoadFile(s.PromptsFile)
	if err != nil {
		return nil, err
	}

	store := moviedb.NewStore(s.DBPath, moviedb.WithTable(p.Table))
	if !store.Exists() {
		log.Warn().Str("db_path", s.DBPath).Msg("movie database not found; queries will report it missing")
	}

	tickets := ticket.NewClient(s.GitHubToken, s.GitHubRepo,
		ticket.WithBaseURL(s.GitHubAPIURL),
		ticket.WithTimeout(s.HTTPTimeout),
	)
	if !tickets.Configured() {
		log.Warn().Msg("GITHUB_TOKEN or GITHUB_REPO not set; support tickets will fail")
	}

	registry, err := tools.NewMovieRegistry(store, tickets)
	if err != nil {
		return nil, err
	}

	bus, err := events.NewBus(ctx, redisstream.Settings{
		Enabled:  s.RedisEnabled,
		Addr:     s.RedisAddr,
		Group:    s.RedisGroup,
		Instance: s.RedisInstance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init event bus")
	}

	var elog *eventlog.Store
	if s.EventLogDB != "" {
		elog, err = eventlog.NewStore(s.EventLogDB)
		if err != nil {
			_ = bus.Close()
			return nil, errors.Wrap(err, "open event log")
		}
	}

	sessions := session.NewManager(p.Greeting, session.WithIdleTimeout(s.SessionIdleTimeout))
	ag := agent.New(model, registry, agent.Options{
		SystemPrompt:  p.SystemPrompt(),
		MaxIterations: s.MaxToolIterations,
		Publisher:     bus,
	})

	return &App{
		Settings: s,
		Prompts:  p,
		Store:    store,
		Tickets:  tickets,
		Registry: registry,
		Model:    model,
		Bus:      bus,
		EventLog: elog,
		Sessions: sessions,
		Agent:    ag,
	}, nil
}

// Start runs the background parts: the event log subscriber and idle
// session eviction. Both stop when ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.EventLog != nil {
		if err := a.EventLog.Subscribe(ctx, a.Bus); err != nil {
			return errors.Wrap(err, "subscribe event log")
		}
	}
	go a.Sessions.Run(ctx)
	return nil
}

// Close releases the bus, the event log and the model client.
func (a *App) Close() error {
	var firstErr error
	if err := a.Bus.Close(); err != nil {
		firstErr = err
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c, ok := a.Model.(llm.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

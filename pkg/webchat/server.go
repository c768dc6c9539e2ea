package webchat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/moviechat/pkg/app"
	"github.com/go-go-golems/moviechat/pkg/session"
)

const (
	sessionCookie = "moviechat_session"

	shutdownTimeout = 30 * time.Second
	poolIdleTimeout = time.Minute
)

// Server is the browser chat UI plus a small JSON API over the same sessions.
type Server struct {
	app      *app.App
	render   *renderer
	pools    *pools
	upgrader websocket.Upgrader
	flashes  *flashes
	mux      *http.ServeMux
	server   *http.Server
}

func NewServer(a *app.App, addr string) (*Server, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:    a,
		render: r,
		pools:  newPools(poolIdleTimeout),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		flashes: newFlashes(),
		mux:     http.NewServeMux(),
	}
	s.routes()
	a.Sessions.OnEvict(func(sess *session.Session) {
		s.flashes.pop(sess.ID)
	})
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a chat pass can run several model round trips
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the app's background work, the websocket forwarder and the
// HTTP listener, and shuts everything down once ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	if err := s.app.Start(srvCtx); err != nil {
		return err
	}
	if err := s.StartForwarder(srvCtx); err != nil {
		return err
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		<-srvCtx.Done()
		log.Info().Msg("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.pools.closeAll()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.server.Addr).Msg("starting moviechat server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server listen error")
			srvCancel()
			return err
		}
		return nil
	})

	return eg.Wait()
}

// flashes holds one pending error banner per session, shown on the next
// page render.
type flashes struct {
	mu  sync.Mutex
	msg map[string]string
}

func newFlashes() *flashes {
	return &flashes{msg: map[string]string{}}
}

func (f *flashes) set(sessionID, msg string) {
	f.mu.Lock()
	f.msg[sessionID] = msg
	f.mu.Unlock()
}

func (f *flashes) pop(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := f.msg[sessionID]
	delete(f.msg, sessionID)
	return msg
}

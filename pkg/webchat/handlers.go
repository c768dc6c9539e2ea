package webchat

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/moviechat/pkg/agent"
	"github.com/go-go-golems/moviechat/pkg/events"
	"github.com/go-go-golems/moviechat/pkg/moviedb"
	"github.com/go-go-golems/moviechat/pkg/persistence/eventlog"
	"github.com/go-go-golems/moviechat/pkg/session"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /chat", s.handleChatForm)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/chat", s.handleChatAPI)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/schema", s.handleSchema)
	s.mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents)
}

// session resolves the caller's session from the cookie. Unknown or missing
// cookies get a fresh server-generated session and a new cookie; clients
// never choose session ids.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if sess, ok := s.cookieSession(r); ok {
		sess.Touch()
		return sess
	}
	sess, _ := s.app.Sessions.GetOrCreate("")
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	data := pageData{
		Messages:      s.render.messages(sess.Visible()),
		Error:         s.flashes.pop(sess.ID),
		Table:         s.app.Prompts.Table,
		Schema:        s.app.Prompts.Schema,
		SampleQueries: s.app.Prompts.SampleQueries,
	}
	st, err := s.app.Store.Stats(r.Context())
	switch {
	case err == nil:
		data.Stats = s.render.stats(st)
	case errors.Is(err, moviedb.ErrDatabaseMissing):
	default:
		log.Warn().Err(err).Msg("could not load dataset stats")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.render.page(w, data); err != nil {
		log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleChatForm(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt != "" {
		if _, err := s.app.Agent.RunTurn(r.Context(), sess, prompt); err != nil {
			s.flashes.set(sess.ID, "An error occurred: "+err.Error())
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// cookieSession returns the caller's existing session, if any.
func (s *Server) cookieSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.app.Sessions.Get(c.Value)
}

// handleWS streams events of the caller's own session only.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.cookieSession(r)
	if !ok {
		http.Error(w, "no chat session", http.StatusBadRequest)
		return
	}
	id := sess.ID

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	pool := s.pools.getOrCreate(id)
	pool.Add(conn)
	log.Debug().Str("session_id", id).Int("connections", pool.Count()).Msg("websocket connected")

	// the browser never sends anything; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	pool.Remove(conn)
	log.Debug().Str("session_id", id).Msg("websocket disconnected")
}

type historyMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []historyMessage `json:"messages"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	resp := historyResponse{SessionID: sess.ID, Messages: []historyMessage{}}
	for _, t := range sess.Visible() {
		resp.Messages = append(resp.Messages, historyMessage{Role: string(t.Role), Text: t.Text})
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

func (s *Server) handleChatAPI(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sess := s.session(w, r)

	answer, err := s.app.Agent.RunTurn(r.Context(), sess, req.Prompt)
	switch {
	case errors.Is(err, agent.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "prompt must not be empty")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "An error occurred: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: sess.ID, Answer: answer})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Store.Stats(r.Context())
	if err != nil && !errors.Is(err, moviedb.ErrDatabaseMissing) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type schemaResponse struct {
	Table         string   `json:"table"`
	Schema        string   `json:"schema"`
	SampleQueries []string `json:"sample_queries"`
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	p := s.app.Prompts
	writeJSON(w, http.StatusOK, schemaResponse{Table: p.Table, Schema: p.Schema, SampleQueries: p.SampleQueries})
}

// handleEvents lists the logged events of the caller's own session.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.app.EventLog == nil {
		writeError(w, http.StatusNotFound, "event log is not enabled")
		return
	}
	sess, ok := s.cookieSession(r)
	if !ok || sess.ID != r.PathValue("id") {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	q := eventlog.Query{
		SessionID: sess.ID,
		Type:      events.Type(r.URL.Query().Get("type")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	evs, err := s.app.EventLog.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

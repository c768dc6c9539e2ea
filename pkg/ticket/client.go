package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.github.com"

var errMalformedIssue = errors.New("malformed issue response")

// Client files support tickets as GitHub issues.
type Client struct {
	token   string
	repo    string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another GitHub API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded. The
// timeout is set on a copy, so a client given through WithHTTPClient is not
// changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		h := *c.http
		h.Timeout = d
		c.http = &h
	}
}

// NewClient builds a client for repo ("owner/name"). Token and repo may be
// empty; CreateSupportTicket then reports the missing configuration.
func NewClient(token, repo string, opts ...Option) *Client {
	c := &Client{
		token:   strings.TrimSpace(token),
		repo:    strings.Trim(strings.TrimSpace(repo), "/"),
		baseURL: DefaultBaseURL,
		http:    cleanhttp.DefaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both a token and a repository are set.
func (c *Client) Configured() bool {
	return c.token != "" && c.repo != ""
}

type issueRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

type successPayload struct {
	Status    string `json:"status"`
	TicketID  string `json:"ticket_id"`
	TicketURL string `json:"ticket_url"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

type errorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateSupportTicket opens an issue with the given title and description
// and returns the tool output the model sees. Failures are reported inside
// the returned JSON, never as a Go error.
func (c *Client) CreateSupportTicket(ctx context.Context, title, description string) string {
	log.Info().Str("component", "ticket").Str("title", title).Msg("creating support ticket")

	if !c.Configured() {
		log.Error().Str("component", "ticket").Msg("missing GitHub token or repository")
		return encode(errorPayload{Error: "Failed to create ticket: Server is missing GitHub configuration."})
	}

	issue, status, body, err := c.createIssue(ctx, title, description)
	if errors.Is(err, errMalformedIssue) {
		log.Error().Err(err).Str("component", "ticket").Str("response", body).Msg("unexpected GitHub response")
		return encode(errorPayload{Error: "An unexpected error occurred while creating the ticket."})
	}
	if err != nil {
		log.Error().Err(err).Str("component", "ticket").Str("repo", c.repo).Msg("request to GitHub failed")
		return encode(errorPayload{Error: "Failed to create ticket: A network error occurred."})
	}
	if status != http.StatusCreated {
		log.Error().Str("component", "ticket").Int("status", status).Str("response", body).Msg("GitHub rejected the issue")
		return encode(errorPayload{
			Error:   fmt.Sprintf("Failed to create ticket. GitHub API responded with status %d.", status),
			Details: body,
		})
	}

	id := fmt.Sprintf("GH-%d", issue.Number)
	log.Info().Str("component", "ticket").Str("ticket_id", id).Str("url", issue.HTMLURL).Msg("support ticket created")
	return encode(successPayload{
		Status:    "success",
		TicketID:  id,
		TicketURL: issue.HTMLURL,
		Title:     title,
		Message:   fmt.Sprintf("Support ticket %s has been successfully created. A human will review it at: %s", id, issue.HTMLURL),
	})
}

// createIssue performs the POST. Any HTTP status is returned as-is with the
// raw body. A non-nil error means the exchange failed, or a 201 carried a body
// that is not an issue (errMalformedIssue).
func (c *Client) createIssue(ctx context.Context, title, description string) (issueResponse, int, string, error) {
	var issue issueResponse

	reqBody, err := json.Marshal(issueRequest{Title: title, Body: description})
	if err != nil {
		return issue, 0, "", errors.Wrap(err, "encode issue")
	}
	url := fmt.Sprintf("%s/repos/%s/issues", c.baseURL, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return issue, 0, "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return issue, 0, "", errors.Wrap(err, "post issue")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return issue, 0, "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusCreated {
		return issue, resp.StatusCode, string(raw), nil
	}
	if err := json.Unmarshal(raw, &issue); err != nil || issue.Number == 0 {
		return issue, resp.StatusCode, string(raw), errors.Wrapf(errMalformedIssue, "decode: %v", err)
	}
	return issue, resp.StatusCode, string(raw), nil
}

func encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimRight(buf.String(), "\n")
}

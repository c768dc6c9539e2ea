package tools

import (
	"context"

	"github.com/pkg/errors"
)

const (
	QueryDatabaseName       = "query_database"
	CreateSupportTicketName = "create_support_ticket"
)

type QueryDatabaseRequest struct {
	SQLQuery string `json:"sql_query" jsonschema:"required,description=A read-only SQLite SELECT statement against the movies table"`
}

type CreateSupportTicketRequest struct {
	Title       string `json:"title" jsonschema:"required,description=Short summary of the user's problem"`
	Description string `json:"description" jsonschema:"required,description=Full description of what the user needs help with"`
}

// Querier runs a statement and returns the result payload.
type Querier interface {
	Query(ctx context.Context, sql string) string
}

// TicketCreator files a support ticket and returns the result payload.
type TicketCreator interface {
	CreateSupportTicket(ctx context.Context, title, description string) string
}

// RegisterQueryDatabaseTool registers query_database on the given registry.
func RegisterQueryDatabaseTool(registry *Registry, q Querier) error {
	t, err := NewToolFromFunc(
		QueryDatabaseName,
		"Runs a safe SQL query on the movies database and returns the results as JSON records. Only read-only (SELECT) queries are allowed.",
		func(ctx context.Context, req QueryDatabaseRequest) string {
			return q.Query(ctx, req.SQLQuery)
		},
	)
	if err != nil {
		return errors.Wrap(err, "query_database tool")
	}
	return errors.Wrap(registry.Register(t), "register query_database tool")
}

// RegisterSupportTicketTool registers create_support_ticket on the given registry.
func RegisterSupportTicketTool(registry *Registry, tc TicketCreator) error {
	t, err := NewToolFromFunc(
		CreateSupportTicketName,
		"Creates a new support ticket (a GitHub issue) so a human can follow up on the user's problem.",
		func(ctx context.Context, req CreateSupportTicketRequest) string {
			return tc.CreateSupportTicket(ctx, req.Title, req.Description)
		},
	)
	if err != nil {
		return errors.Wrap(err, "create_support_ticket tool")
	}
	return errors.Wrap(registry.Register(t), "register create_support_ticket tool")
}

// NewMovieRegistry returns a registry holding both chat tools.
func NewMovieRegistry(q Querier, tc TicketCreator) (*Registry, error) {
	r := NewRegistry()
	if err := RegisterQueryDatabaseTool(r, q); err != nil {
		return nil, err
	}
	if err := RegisterSupportTicketTool(r, tc); err != nil {
		return nil, err
	}
	return r, nil
}

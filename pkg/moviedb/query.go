package moviedb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	msgNotAllowed = "Query is not allowed. Only read-only SELECT statements are permitted."
	msgNoResults  = "Query executed, but no results to return."
)

// Query runs sql and returns the tool output the model sees: a JSON array of
// column-keyed records, or a JSON object with an "error" or "message" key.
// It never returns a Go error; every failure becomes a payload.
func (s *Store) Query(ctx context.Context, sql string) string {
	log.Info().Str("component", "moviedb").Str("sql", sql).Msg("running query")

	if !IsQuerySafe(sql) {
		return errorPayload(msgNotAllowed)
	}
	if !s.Exists() {
		return errorPayload(fmt.Sprintf("Database file '%s' not found. Please run the dataset setup first.", filepath.Base(s.path)))
	}

	out, err := s.query(ctx, sql)
	if err != nil {
		log.Error().Err(err).Str("component", "moviedb").Str("sql", sql).Msg("database error")
		return errorPayload("An error occurred: " + errors.Cause(err).Error())
	}
	return out
}

func (s *Store) query(ctx context.Context, query string) (string, error) {
	db, err := s.open(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		// statements without a result set only run when stepped
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return "", err
		}
		return messagePayload(msgNoResults), nil
	}

	var records [][]any
	extra := 0
	for rows.Next() {
		if len(records) >= s.maxRows {
			extra++
			continue
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		records = append(records, vals)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	body, err := encodeRecords(cols, records)
	if err != nil {
		return "", errors.Wrap(err, "encode rows")
	}
	if extra > 0 {
		return fmt.Sprintf("%s\n... (truncated, %d more rows)", body, extra), nil
	}
	return body, nil
}

// encodeRecords renders rows as a JSON array of objects whose keys keep the
// column order of the result set.
func encodeRecords(cols []string, records [][]any) (string, error) {
	keys := make([][]byte, len(cols))
	for i, c := range cols {
		k, err := marshal(c)
		if err != nil {
			return "", err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, rec := range records {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, v := range rec {
			if i > 0 {
				buf.WriteByte(',')
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			val, err := marshal(v)
			if err != nil {
				return "", err
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// marshal is json.Marshal without HTML escaping, so URLs and comparison
// operators reach the model unchanged.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func errorPayload(msg string) string {
	b, _ := marshal(map[string]string{"error": msg})
	return string(b)
}

func messagePayload(msg string) string {
	b, _ := marshal(map[string]string{"message": msg})
	return string(b)
}

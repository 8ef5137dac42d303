// ABOUTME: Invocation log entity and store methods recording every tool dispatch.
// ABOUTME: Also provides the dispatcher observer that feeds the log.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tool-gateway/internal/toolbox"
)

// Invocation is one recorded tool dispatch.
type Invocation struct {
	ID         string    `json:"id"`
	ToolName   string    `json:"tool"`
	Protocol   string    `json:"protocol"`
	SessionID  string    `json:"session_id,omitempty"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"ts"`
}

// InvocationFilter narrows ListInvocations.
type InvocationFilter struct {
	ToolName string // exact match when non-empty
	Limit    int    // default 50, max 500
}

// tsLayout is fixed-width so text ordering in SQLite matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func normalizeInvocationLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

// AppendInvocation records an invocation. Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendInvocation(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO invocations (invocation_id, tool_name, protocol, session_id, success, error_kind, error_message, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.ToolName,
		inv.Protocol,
		nullString(inv.SessionID),
		inv.Success,
		nullString(inv.ErrorKind),
		nullString(inv.Error),
		inv.DurationMS,
		inv.Timestamp.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"id", inv.ID,
		"tool_name", inv.ToolName,
		"success", inv.Success,
	)
	return nil
}

const invocationsQuery = `
	SELECT invocation_id, tool_name, protocol, session_id, success, error_kind, error_message, duration_ms, ts
	FROM invocations
	WHERE (? = '' OR tool_name = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListInvocations returns recorded invocations, newest first.
func (s *SQLiteStore) ListInvocations(ctx context.Context, f InvocationFilter) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, invocationsQuery,
		f.ToolName, f.ToolName,
		normalizeInvocationLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return invocations, nil
}

func scanInvocation(scanner interface{ Scan(dest ...any) error }) (Invocation, error) {
	var inv Invocation
	var sessionID, errKind, errMsg sql.NullString
	var tsStr string

	if err := scanner.Scan(
		&inv.ID,
		&inv.ToolName,
		&inv.Protocol,
		&sessionID,
		&inv.Success,
		&errKind,
		&errMsg,
		&inv.DurationMS,
		&tsStr,
	); err != nil {
		return inv, fmt.Errorf("scanning invocation: %w", err)
	}

	inv.SessionID = sessionID.String
	inv.ErrorKind = errKind.String
	inv.Error = errMsg.String

	var err error
	inv.Timestamp, err = time.Parse(tsLayout, tsStr)
	if err != nil {
		return inv, fmt.Errorf("parsing timestamp: %w", err)
	}
	return inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InvocationRecorder is a toolbox.Observer that appends every dispatch to the log.
type InvocationRecorder struct {
	store *SQLiteStore
}

// NewInvocationRecorder creates an observer writing to s.
func NewInvocationRecorder(s *SQLiteStore) *InvocationRecorder {
	return &InvocationRecorder{store: s}
}

// ObserveInvoke implements toolbox.Observer. Write failures are logged, never returned.
func (r *InvocationRecorder) ObserveInvoke(ctx context.Context, obs toolbox.Observation) {
	inv := &Invocation{
		ID:         obs.InvocationID,
		ToolName:   obs.ToolName,
		Protocol:   obs.Protocol,
		SessionID:  obs.SessionID,
		Success:    obs.Success(),
		ErrorKind:  string(obs.ErrKind),
		Error:      obs.ErrMessage,
		DurationMS: obs.Duration.Milliseconds(),
		Timestamp:  obs.StartedAt.UTC(),
	}
	if err := r.store.AppendInvocation(ctx, inv); err != nil {
		r.store.logger.Warn("failed to record invocation",
			"tool_name", obs.ToolName,
			"invocation_id", obs.InvocationID,
			"error", err,
		)
	}
}

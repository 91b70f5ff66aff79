package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"steward/internal/domain"
)

// InteractionStore persists resolved attention items.
type InteractionStore struct {
	db *DB
}

// NewInteractionStore creates an interaction store.
func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// AppendInteraction records one resolved item. Implements the
// attention registry's Recorder.
func (s *InteractionStore) AppendInteraction(rec domain.InteractionRecord) error {
	input := ""
	if len(rec.ToolInput) > 0 {
		input = string(rec.ToolInput)
	}

	_, err := s.db.Exec(`
		INSERT INTO interactions (id, session_id, kind, tool_name, tool_input, behavior, message, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SessionID, string(rec.Kind), rec.ToolName, input, string(rec.Behavior), rec.Message, rec.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListBySession returns the session's interaction history, oldest first.
func (s *InteractionStore) ListBySession(sessionID string) ([]domain.InteractionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, kind, tool_name, tool_input, behavior, message, resolved_at
		FROM interactions
		WHERE session_id = ?
		ORDER BY resolved_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// Prune deletes records resolved before the cutoff and returns the
// number removed.
func (s *InteractionStore) Prune(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM interactions WHERE resolved_at < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune interactions: %w", err)
	}
	return res.RowsAffected()
}

func scanInteractions(rows *sql.Rows) ([]domain.InteractionRecord, error) {
	var records []domain.InteractionRecord
	for rows.Next() {
		var (
			rec      domain.InteractionRecord
			kind     string
			input    string
			behavior string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &kind, &rec.ToolName, &input, &behavior, &rec.Message, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		rec.Kind = domain.AttentionKind(kind)
		rec.Behavior = domain.Behavior(behavior)
		if input != "" {
			rec.ToolInput = json.RawMessage(input)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

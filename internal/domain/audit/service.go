// Task 4.4: audit logging.
// Append-only record of every mutating operation on the service. The only
// write path is Log; there is no update or delete.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/svidal/promptforge/pkg/uuid"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Log appends one audit event.
func (s *Service) Log(ctx context.Context, event *Event) error {
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (id, actor, action, entity_type, entity_id, details, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Actor, event.Action, event.EntityType, event.EntityID,
		string(details), string(event.Outcome), event.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Record is the convenience path for handler code: it fills in id and
// timestamp and marshals details.
func (s *Service) Record(ctx context.Context, actor, action, entityType, entityID string, details any, outcome Outcome) error {
	var raw json.RawMessage
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		raw = encoded
	}

	return s.Log(ctx, &Event{
		ID:         uuid.NewV7().String(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    raw,
		Outcome:    outcome,
		CreatedAt:  time.Now(),
	})
}

// List returns events newest first, optionally filtered by action.
func (s *Service) List(ctx context.Context, action string, limit, offset int) ([]*Event, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if action != "" {
		where = " WHERE action = ?"
		args = append(args, action)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_event"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `
		SELECT id, actor, action, entity_type, entity_id, details, outcome, created_at
		FROM audit_event` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []*Event{}
	for rows.Next() {
		var (
			evt       Event
			details   string
			outcome   string
			createdAt string
		)
		if scanErr := rows.Scan(&evt.ID, &evt.Actor, &evt.Action, &evt.EntityType, &evt.EntityID,
			&details, &outcome, &createdAt); scanErr != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", scanErr)
		}
		evt.Details = json.RawMessage(details)
		evt.Outcome = Outcome(outcome)
		evt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &evt)
	}
	return out, total, rows.Err()
}

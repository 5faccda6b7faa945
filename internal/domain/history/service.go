// Task 4.3: enhancement history service.
// Persists completed enhancement results and serves the listing, favorite
// and stats surfaces. Saves announce themselves on the event bus so live
// consumers (status stream) can react without polling.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/infra/eventbus"
)

// ErrNotFound is returned when no history entry matches the given id.
var ErrNotFound = errors.New("history entry not found")

// Entry is a persisted enhancement result plus history-only metadata.
type Entry struct {
	enhance.Result
	Favorite bool `json:"favorite"`
}

type ListInput struct {
	Target       string
	FavoriteOnly bool
	Limit        int
	Offset       int
}

// Stats aggregates the stored history for the stats endpoint.
type Stats struct {
	TotalEnhancements int     `json:"total_enhancements"`
	Favorites         int     `json:"favorites"`
	AvgInferenceMs    float64 `json:"avg_inference_ms"`
	TotalTokens       int     `json:"total_tokens"`
}

type Service struct {
	db  *sql.DB
	bus eventbus.EventBus
}

// NewService creates a history Service. bus may be nil.
func NewService(db *sql.DB, bus eventbus.EventBus) *Service {
	return &Service{db: db, bus: bus}
}

// Save persists a completed result. The result id doubles as the history
// entry id.
func (s *Service) Save(ctx context.Context, res enhance.Result) (*Entry, error) {
	improvements, err := json.Marshal(res.Improvements)
	if err != nil {
		return nil, fmt.Errorf("encode improvements: %w", err)
	}

	var templateID any
	if res.TemplateID != "" {
		templateID = res.TemplateID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enhancement_history
			(id, original_prompt, enhanced_prompt, target, level, template_id,
			 inference_ms, tokens, improvements, source_app, favorite, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		res.ID, res.OriginalPrompt, res.EnhancedPrompt, string(res.Target), string(res.Level),
		templateID, res.InferenceMs, res.Tokens, string(improvements), res.SourceApp,
		res.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("save history entry: %w", err)
	}

	entry := &Entry{Result: res}
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicHistorySaved, *entry)
	}
	return entry, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM enhancement_history WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, input ListInput) ([]*Entry, int, error) {
	if input.Limit <= 0 {
		input.Limit = 50
	}

	where := " WHERE 1=1"
	args := []any{}
	if input.Target != "" {
		where += " AND target = ?"
		args = append(args, input.Target)
	}
	if input.FavoriteOnly {
		where += " AND favorite = 1"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enhancement_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	query := selectColumns + ` FROM enhancement_history` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, input.Limit, input.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []*Entry{}
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan history entry: %w", scanErr)
		}
		out = append(out, entry)
	}
	return out, total, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enhancement_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all history entries and returns the number removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enhancement_history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// SetFavorite marks or unmarks an entry as favorite.
func (s *Service) SetFavorite(ctx context.Context, id string, favorite bool) (*Entry, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE enhancement_history SET favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return nil, fmt.Errorf("set favorite: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(favorite), 0),
		       COALESCE(AVG(inference_ms), 0),
		       COALESCE(SUM(tokens), 0)
		FROM enhancement_history`).
		Scan(&stats.TotalEnhancements, &stats.Favorites, &stats.AvgInferenceMs, &stats.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	return &stats, nil
}

const selectColumns = `
	SELECT id, original_prompt, enhanced_prompt, target, level, template_id,
	       inference_ms, tokens, improvements, source_app, favorite, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry        Entry
		target       string
		level        string
		templateID   sql.NullString
		improvements string
		createdAt    string
	)
	err := row.Scan(&entry.ID, &entry.OriginalPrompt, &entry.EnhancedPrompt, &target, &level,
		&templateID, &entry.InferenceMs, &entry.Tokens, &improvements, &entry.SourceApp,
		&entry.Favorite, &createdAt)
	if err != nil {
		return nil, err
	}

	entry.Target = enhance.TargetProfile(target)
	entry.Level = enhance.Level(level)
	entry.TemplateID = templateID.String
	if err := json.Unmarshal([]byte(improvements), &entry.Improvements); err != nil {
		entry.Improvements = []string{}
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &entry, nil
}

// Task 4.1: prompt template service.
// CRUD over reusable base prompt patterns plus usage counting. Built-in
// templates are seeded at startup and protected from deletion.
package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/pkg/uuid"
)

var (
	// ErrNotFound is returned when no template matches the given id.
	ErrNotFound = errors.New("template not found")

	// ErrBuiltIn is returned when a mutation targets a built-in template.
	ErrBuiltIn = errors.New("built-in templates cannot be modified")
)

type CreateInput struct {
	Name        string
	Description string
	Category    string
	BasePrompt  string
}

type UpdateInput struct {
	Name        string
	Description string
	Category    string
	BasePrompt  string
}

type ListInput struct {
	Category string
	Limit    int
	Offset   int
}

// Service manages prompt templates. It also implements the enhancement
// flow's TemplateLookup.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*enhance.Template, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if strings.TrimSpace(input.BasePrompt) == "" {
		return nil, fmt.Errorf("template base prompt is required")
	}

	id := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_template (id, name, description, category, base_prompt, usage_count, built_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		id, input.Name, input.Description, input.Category, input.BasePrompt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*enhance.Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, base_prompt, usage_count, built_in, created_at, updated_at
		FROM prompt_template WHERE id = ?`, id)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

// GetTemplate implements enhance.TemplateLookup: a missing id resolves to
// (nil, nil) so the enhancement flow degrades instead of failing.
func (s *Service) GetTemplate(ctx context.Context, id string) (*enhance.Template, error) {
	tmpl, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s *Service) List(ctx context.Context, input ListInput) ([]*enhance.Template, int, error) {
	if input.Limit <= 0 {
		input.Limit = 50
	}

	where := ""
	args := []any{}
	if input.Category != "" {
		where = " WHERE category = ?"
		args = append(args, input.Category)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM prompt_template"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	query := `
		SELECT id, name, description, category, base_prompt, usage_count, built_in, created_at, updated_at
		FROM prompt_template` + where + ` ORDER BY usage_count DESC, name ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, input.Limit, input.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []*enhance.Template{}
	for rows.Next() {
		tmpl, scanErr := scanTemplate(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan template: %w", scanErr)
		}
		out = append(out, tmpl)
	}
	return out, total, rows.Err()
}

func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*enhance.Template, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.BuiltIn {
		return nil, ErrBuiltIn
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE prompt_template
		SET name = ?, description = ?, category = ?, base_prompt = ?, updated_at = ?
		WHERE id = ?`,
		input.Name, input.Description, input.Category, input.BasePrompt,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.BuiltIn {
		return ErrBuiltIn
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM prompt_template WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// IncrementUsage bumps the usage counter. A missing id is ignored: the
// counter is best-effort metadata, not part of the enhancement contract.
func (s *Service) IncrementUsage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE prompt_template
		SET usage_count = usage_count + 1, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*enhance.Template, error) {
	var (
		tmpl               enhance.Template
		createdAt, updated string
	)
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Description, &tmpl.Category,
		&tmpl.BasePrompt, &tmpl.UsageCount, &tmpl.BuiltIn, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	tmpl.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tmpl.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &tmpl, nil
}

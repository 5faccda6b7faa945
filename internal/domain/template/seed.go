// Task 4.2: built-in template seeding.
// Ships a curated set of task-category templates embedded in the binary;
// seeding is idempotent so restarts never duplicate them.
package template

import (
	"context"
	"embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed_templates.yaml
var seedFS embed.FS

type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	BasePrompt  string `yaml:"base_prompt"`
}

// Seed inserts the bundled built-in templates that are not yet present.
// Existing rows (including user edits to non-built-in copies) are left
// untouched.
func (s *Service) Seed(ctx context.Context) (int, error) {
	raw, err := seedFS.ReadFile("seed_templates.yaml")
	if err != nil {
		return 0, fmt.Errorf("read template seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse template seed: %w", err)
	}

	inserted := 0
	now := time.Now().UTC().Format(time.RFC3339)
	for _, tmpl := range file.Templates {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_template WHERE id = ?`, tmpl.ID).Scan(&exists)
		if err != nil {
			return inserted, fmt.Errorf("check seed template %s: %w", tmpl.ID, err)
		}
		if exists > 0 {
			continue
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO prompt_template (id, name, description, category, base_prompt, usage_count, built_in, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, 1, ?, ?)`,
			tmpl.ID, tmpl.Name, tmpl.Description, tmpl.Category, tmpl.BasePrompt, now, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert seed template %s: %w", tmpl.ID, err)
		}
		inserted++
	}
	return inserted, nil
}

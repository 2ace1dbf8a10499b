package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"bank_reviews/internal/domain"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL for backend b.
func Schema(b Backend) (string, error) {
	data, err := schemaFS.ReadFile("schema/" + string(b) + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for backend %q: %w", b, err)
	}
	return string(data), nil
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (r *Repo) Migrate(ctx context.Context) error {
	ddl, err := Schema(r.b)
	if err != nil {
		return &domain.PersistenceError{Op: "migrate", Err: err}
	}
	stmts := statements(ddl)
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return &domain.PersistenceError{Op: "migrate", Err: err}
		}
	}
	log.Info().Str("backend", string(r.b)).Int("statements", len(stmts)).Msg("schema migrated")
	return nil
}

// statements splits a DDL file on semicolons; the schema files contain no
// string literals with semicolons.
func statements(ddl string) []string {
	var out []string
	for _, s := range strings.Split(ddl, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

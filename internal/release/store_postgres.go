package release

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
)

// PostgresStore persists releases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const releaseColumns = `id, version, release_type, content_hash, bundle, changelog, rule_ids, created_at`

func (s *PostgresStore) Create(ctx context.Context, rel *RuleRelease) error {
	raw := make([]string, len(rel.RuleIDs))
	for i, id := range rel.RuleIDs {
		raw[i] = id.String()
	}
	query := `
		INSERT INTO rule_releases (` + releaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		rel.ID.String(), rel.Version, string(rel.ReleaseType), rel.ContentHash,
		rel.Bundle, pq.Array(rel.Changelog), pq.Array(raw), rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("create release: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ReleaseID) (*RuleRelease, error) {
	query := `SELECT ` + releaseColumns + ` FROM rule_releases WHERE id = $1`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String())
	return scanRelease(row)
}

func (s *PostgresStore) Latest(ctx context.Context) (*RuleRelease, error) {
	query := `SELECT ` + releaseColumns + ` FROM rule_releases ORDER BY created_at DESC LIMIT 1`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query)
	return scanRelease(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*RuleRelease, error) {
	query := `SELECT ` + releaseColumns + ` FROM rule_releases ORDER BY created_at`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()
	var out []*RuleRelease
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func scanRelease(row interface{ Scan(dest ...any) error }) (*RuleRelease, error) {
	var (
		rel       RuleRelease
		rawID     string
		relType   string
		changelog pq.StringArray
		rawRules  pq.StringArray
	)
	err := row.Scan(&rawID, &rel.Version, &relType, &rel.ContentHash,
		&rel.Bundle, &changelog, &rawRules, &rel.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan release: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan release id: %w", err)
	}
	rel.ID = domain.ReleaseID(id)
	rel.ReleaseType = ReleaseType(relType)
	rel.Changelog = []string(changelog)
	for _, raw := range rawRules {
		rid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scan release rule id: %w", err)
		}
		rel.RuleIDs = append(rel.RuleIDs, domain.RuleID(rid))
	}
	return &rel, nil
}

package conflict

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
)

// PostgresStore persists conflicts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const conflictColumns = `id, concept_slug, rule_a, rule_b, status, winner_id, decided_by, reason, created_at, resolved_at`

func (s *PostgresStore) Create(ctx context.Context, c *RegulatoryConflict) error {
	query := `
		INSERT INTO regulatory_conflicts (` + conflictColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		c.ID.String(), c.ConceptSlug, c.RuleA.String(), c.RuleB.String(),
		string(c.Status), winnerOrNil(c.WinnerID), string(c.DecidedBy),
		c.Reason, c.CreatedAt, c.ResolvedAt)
	if err != nil {
		return fmt.Errorf("create conflict: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ConflictID) (*RegulatoryConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM regulatory_conflicts WHERE id = $1`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String())
	return scanConflict(row)
}

func (s *PostgresStore) FindByPair(ctx context.Context, a, b domain.RuleID) (*RegulatoryConflict, error) {
	a, b = normalizePair(a, b)
	query := `SELECT ` + conflictColumns + ` FROM regulatory_conflicts WHERE rule_a = $1 AND rule_b = $2`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, a.String(), b.String())
	return scanConflict(row)
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]*RegulatoryConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM regulatory_conflicts WHERE status = $1 ORDER BY created_at`
	return s.query(ctx, query, string(StatusOpen))
}

func (s *PostgresStore) ListByConcept(ctx context.Context, conceptSlug string) ([]*RegulatoryConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM regulatory_conflicts WHERE concept_slug = $1 ORDER BY created_at`
	return s.query(ctx, query, conceptSlug)
}

func (s *PostgresStore) Update(ctx context.Context, c *RegulatoryConflict) error {
	query := `
		UPDATE regulatory_conflicts
		SET status = $2, winner_id = $3, decided_by = $4, reason = $5, resolved_at = $6
		WHERE id = $1
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		c.ID.String(), string(c.Status), winnerOrNil(c.WinnerID),
		string(c.DecidedBy), c.Reason, c.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*RegulatoryConflict, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()
	var out []*RegulatoryConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConflict(row interface{ Scan(dest ...any) error }) (*RegulatoryConflict, error) {
	var (
		c          RegulatoryConflict
		rawID      string
		rawA       string
		rawB       string
		status     string
		winner     sql.NullString
		decidedBy  string
		resolvedAt sql.NullTime
	)
	err := row.Scan(&rawID, &c.ConceptSlug, &rawA, &rawB, &status, &winner,
		&decidedBy, &c.Reason, &c.CreatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan conflict: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan conflict id: %w", err)
	}
	a, err := uuid.Parse(rawA)
	if err != nil {
		return nil, fmt.Errorf("scan conflict rule a: %w", err)
	}
	b, err := uuid.Parse(rawB)
	if err != nil {
		return nil, fmt.Errorf("scan conflict rule b: %w", err)
	}
	c.ID = domain.ConflictID(id)
	c.RuleA = domain.RuleID(a)
	c.RuleB = domain.RuleID(b)
	c.Status = Status(status)
	c.DecidedBy = DecidedBy(decidedBy)
	if winner.Valid {
		w, err := uuid.Parse(winner.String)
		if err != nil {
			return nil, fmt.Errorf("scan conflict winner: %w", err)
		}
		id := domain.RuleID(w)
		c.WinnerID = &id
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

func winnerOrNil(id *domain.RuleID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

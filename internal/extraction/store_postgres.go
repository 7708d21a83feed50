package extraction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"normative/internal/grounding"
	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
)

// PostgresStore persists source pointers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pointerColumns = `id, evidence_id, domain, extracted_value, exact_quote, article_ref,
	confidence, match_type, created_at, verified_at`

func (s *PostgresStore) Create(ctx context.Context, p *SourcePointer) error {
	query := `
		INSERT INTO source_pointers (` + pointerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		p.ID.String(), p.EvidenceID.String(), p.Domain, p.ExtractedValue,
		p.ExactQuote, p.ArticleRef, p.Confidence, string(p.MatchType),
		p.CreatedAt, p.VerifiedAt)
	if err != nil {
		return fmt.Errorf("create source pointer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PointerID) (*SourcePointer, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+pointerColumns+` FROM source_pointers WHERE id = $1`, id.String())
	return scanPointer(row)
}

func (s *PostgresStore) ListByEvidence(ctx context.Context, evidenceID domain.EvidenceID) ([]*SourcePointer, error) {
	return s.list(ctx,
		`SELECT `+pointerColumns+` FROM source_pointers WHERE evidence_id = $1 ORDER BY created_at`,
		evidenceID.String())
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []domain.PointerID) ([]*SourcePointer, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return s.list(ctx,
		`SELECT `+pointerColumns+` FROM source_pointers WHERE id = ANY($1) ORDER BY created_at`,
		pq.Array(raw))
}

func (s *PostgresStore) ListByMatchType(ctx context.Context, mt grounding.MatchType) ([]*SourcePointer, error) {
	return s.list(ctx,
		`SELECT `+pointerColumns+` FROM source_pointers WHERE match_type = $1 ORDER BY created_at`,
		string(mt))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*SourcePointer, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list source pointers: %w", err)
	}
	defer rows.Close()
	var out []*SourcePointer
	for rows.Next() {
		p, err := scanPointer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateMatchType(ctx context.Context, id domain.PointerID, mt grounding.MatchType) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`UPDATE source_pointers SET match_type = $2, verified_at = $3 WHERE id = $1`,
		id.String(), string(mt), time.Now())
	if err != nil {
		return fmt.Errorf("update pointer match type: %w", err)
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

func (s *PostgresStore) ReassignEvidence(ctx context.Context, from, to domain.EvidenceID) (int, error) {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`UPDATE source_pointers SET evidence_id = $2 WHERE evidence_id = $1`,
		from.String(), to.String())
	if err != nil {
		return 0, fmt.Errorf("reassign pointers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPointer(row rowScanner) (*SourcePointer, error) {
	var (
		p          SourcePointer
		rawID      string
		rawEvID    string
		matchType  string
		verifiedAt sql.NullTime
	)
	err := row.Scan(&rawID, &rawEvID, &p.Domain, &p.ExtractedValue, &p.ExactQuote,
		&p.ArticleRef, &p.Confidence, &matchType, &p.CreatedAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan source pointer: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan pointer id: %w", err)
	}
	evID, err := uuid.Parse(rawEvID)
	if err != nil {
		return nil, fmt.Errorf("scan pointer evidence id: %w", err)
	}
	p.ID = domain.PointerID(id)
	p.EvidenceID = domain.EvidenceID(evID)
	p.MatchType = grounding.MatchType(matchType)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	return &p, nil
}

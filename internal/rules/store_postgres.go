package rules

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

// PostgresStore persists rules in PostgreSQL. Statements run on the context
// transaction when one is present so review transitions and their sync
// events commit atomically.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ruleColumns = `id, concept_slug, title, value, value_type, risk_tier, status,
	effective_from, effective_until, confidence, pointer_ids, version,
	supersedes_id, reviewed_by, review_note, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rule *RegulatoryRule) error {
	query := `
		INSERT INTO regulatory_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		rule.ID.String(), rule.ConceptSlug, rule.Title, rule.Value,
		string(rule.ValueType), string(rule.RiskTier), string(rule.Status),
		rule.EffectiveFrom, rule.EffectiveUntil, rule.Confidence,
		pq.Array(pointerStrings(rule.PointerIDs)), rule.Version,
		ruleIDOrNil(rule.SupersedesID), rule.ReviewedBy, rule.ReviewNote,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RuleID) (*RegulatoryRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM regulatory_rules WHERE id = $1`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String())
	return scanRule(row)
}

func (s *PostgresStore) ListByConcept(ctx context.Context, conceptSlug string) ([]*RegulatoryRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM regulatory_rules WHERE concept_slug = $1 ORDER BY created_at`
	return s.query(ctx, query, conceptSlug)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*RegulatoryRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM regulatory_rules WHERE status = $1 ORDER BY created_at`
	return s.query(ctx, query, string(status))
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []domain.RuleID) ([]*RegulatoryRule, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `SELECT ` + ruleColumns + ` FROM regulatory_rules WHERE id = ANY($1) ORDER BY created_at`
	return s.query(ctx, query, pq.Array(raw))
}

func (s *PostgresStore) ListCitingPointer(ctx context.Context, pointerID domain.PointerID) ([]*RegulatoryRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM regulatory_rules WHERE $1 = ANY(pointer_ids) ORDER BY created_at`
	return s.query(ctx, query, pointerID.String())
}

func (s *PostgresStore) Update(ctx context.Context, rule *RegulatoryRule) error {
	query := `
		UPDATE regulatory_rules
		SET concept_slug = $3, title = $4, value = $5, value_type = $6,
		    risk_tier = $7, status = $8, effective_from = $9,
		    effective_until = $10, confidence = $11, pointer_ids = $12,
		    version = version + 1, supersedes_id = $13, reviewed_by = $14,
		    review_note = $15, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		rule.ID.String(), rule.Version, rule.ConceptSlug, rule.Title,
		rule.Value, string(rule.ValueType), string(rule.RiskTier),
		string(rule.Status), rule.EffectiveFrom, rule.EffectiveUntil,
		rule.Confidence, pq.Array(pointerStrings(rule.PointerIDs)),
		ruleIDOrNil(rule.SupersedesID), rule.ReviewedBy, rule.ReviewNote)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindByID(ctx, rule.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*RegulatoryRule, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	var out []*RegulatoryRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRule(row interface{ Scan(dest ...any) error }) (*RegulatoryRule, error) {
	var (
		r           RegulatoryRule
		rawID       string
		valueType   string
		tier        string
		status      string
		until       sql.NullTime
		rawPointers pq.StringArray
		supersedes  sql.NullString
	)
	err := row.Scan(&rawID, &r.ConceptSlug, &r.Title, &r.Value, &valueType,
		&tier, &status, &r.EffectiveFrom, &until, &r.Confidence, &rawPointers,
		&r.Version, &supersedes, &r.ReviewedBy, &r.ReviewNote,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan rule id: %w", err)
	}
	r.ID = domain.RuleID(id)
	r.ValueType = ValueType(valueType)
	r.RiskTier = RiskTier(tier)
	r.Status = Status(status)
	if until.Valid {
		t := until.Time
		r.EffectiveUntil = &t
	}
	for _, raw := range rawPointers {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scan rule pointer id: %w", err)
		}
		r.PointerIDs = append(r.PointerIDs, domain.PointerID(pid))
	}
	if supersedes.Valid {
		sid, err := uuid.Parse(supersedes.String)
		if err != nil {
			return nil, fmt.Errorf("scan rule supersedes id: %w", err)
		}
		parsed := domain.RuleID(sid)
		r.SupersedesID = &parsed
	}
	return &r, nil
}

func pointerStrings(ids []domain.PointerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func ruleIDOrNil(id *domain.RuleID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

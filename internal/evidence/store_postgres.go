package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
)

// PostgresStore persists evidence rows in PostgreSQL. Statements run on the
// context transaction when one is present so dedup merges stay atomic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const evidenceColumns = `id, source_url, content_class, raw_content, content_hash, fetched_at, stale, deleted_at`

func (s *PostgresStore) Create(ctx context.Context, ev *Evidence) error {
	query := `
		INSERT INTO evidence (` + evidenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		ev.ID.String(), ev.SourceURL, string(ev.Class), ev.RawContent,
		ev.ContentHash, ev.FetchedAt, ev.Stale)
	if err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.EvidenceID) (*Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE id = $1 AND deleted_at IS NULL`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String())
	return scanEvidence(row)
}

func (s *PostgresStore) FindActive(ctx context.Context, url, contentHash string) (*Evidence, error) {
	query := `
		SELECT ` + evidenceColumns + ` FROM evidence
		WHERE source_url = $1 AND content_hash = $2 AND deleted_at IS NULL
		ORDER BY fetched_at DESC LIMIT 1
	`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, url, contentHash)
	return scanEvidence(row)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence WHERE deleted_at IS NULL ORDER BY fetched_at`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()
	var out []*Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkStale(ctx context.Context, id domain.EvidenceID) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`UPDATE evidence SET stale = TRUE WHERE id = $1 AND deleted_at IS NULL`, id.String())
	if err != nil {
		return fmt.Errorf("mark evidence stale: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id domain.EvidenceID, at time.Time) error {
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx,
		`UPDATE evidence SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id.String(), at)
	if err != nil {
		return fmt.Errorf("soft delete evidence: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) DuplicateGroups(ctx context.Context) ([][]*Evidence, error) {
	query := `
		SELECT ` + evidenceColumns + ` FROM evidence
		WHERE deleted_at IS NULL AND (source_url, content_hash) IN (
			SELECT source_url, content_hash FROM evidence
			WHERE deleted_at IS NULL
			GROUP BY source_url, content_hash
			HAVING COUNT(*) > 1
		)
		ORDER BY source_url, content_hash, fetched_at DESC
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find duplicate evidence: %w", err)
	}
	defer rows.Close()

	var groups [][]*Evidence
	var current []*Evidence
	var curKey [2]string
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		key := [2]string{ev.SourceURL, ev.ContentHash}
		if key != curKey && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		curKey = key
		current = append(current, ev)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, rows.Err()
}

func (s *PostgresStore) AddArtifact(ctx context.Context, a *Artifact) error {
	query := `
		INSERT INTO evidence_artifacts (id, evidence_id, kind, content, content_hash, ocr_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		a.ID.String(), a.EvidenceID.String(), string(a.Kind), a.Content,
		a.ContentHash, a.OCRConfidence, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("add evidence artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArtifactsByEvidence(ctx context.Context, id domain.EvidenceID) ([]*Artifact, error) {
	query := `
		SELECT id, evidence_id, kind, content, content_hash, ocr_confidence, created_at
		FROM evidence_artifacts WHERE evidence_id = $1 ORDER BY created_at
	`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestArtifact(ctx context.Context, id domain.EvidenceID, kind ArtifactKind) (*Artifact, error) {
	query := `
		SELECT id, evidence_id, kind, content, content_hash, ocr_confidence, created_at
		FROM evidence_artifacts WHERE evidence_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1
	`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id.String(), string(kind))
	return scanArtifact(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvidence(row rowScanner) (*Evidence, error) {
	var (
		ev        Evidence
		rawID     string
		class     string
		deletedAt sql.NullTime
	)
	err := row.Scan(&rawID, &ev.SourceURL, &class, &ev.RawContent, &ev.ContentHash,
		&ev.FetchedAt, &ev.Stale, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan evidence: %w", err)
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan evidence id: %w", err)
	}
	ev.ID = domain.EvidenceID(parsed)
	ev.Class = ContentClass(class)
	if deletedAt.Valid {
		t := deletedAt.Time
		ev.DeletedAt = &t
	}
	return &ev, nil
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		a       Artifact
		rawID   string
		rawEvID string
		rawKind string
	)
	err := row.Scan(&rawID, &rawEvID, &rawKind, &a.Content, &a.ContentHash,
		&a.OCRConfidence, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan artifact id: %w", err)
	}
	evID, err := uuid.Parse(rawEvID)
	if err != nil {
		return nil, fmt.Errorf("scan artifact evidence id: %w", err)
	}
	a.ID = domain.ArtifactID(id)
	a.EvidenceID = domain.EvidenceID(evID)
	a.Kind = ArtifactKind(rawKind)
	return &a, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

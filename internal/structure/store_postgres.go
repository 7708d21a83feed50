package structure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
)

// PostgresStore persists parses in PostgreSQL. CreateParse runs in its own
// transaction unless the context already carries one, so the latest-flag
// flip and the node inserts commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateParse(ctx context.Context, doc *ParsedDocument, nodes []*ProvisionNode) error {
	if _, ok := tx.From(ctx); ok {
		return s.createParse(ctx, doc, nodes)
	}
	runner := &tx.SQLRunner{DB: s.db}
	return runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.createParse(ctx, doc, nodes)
	})
}

func (s *PostgresStore) createParse(ctx context.Context, doc *ParsedDocument, nodes []*ProvisionNode) error {
	q := tx.Resolve(ctx, s.db)

	// Flip the previous latest and record the supersession link.
	var prevID sql.NullString
	err := q.QueryRowContext(ctx, `
		UPDATE parsed_documents SET is_latest = FALSE
		WHERE evidence_id = $1 AND is_latest
		RETURNING id
	`, doc.EvidenceID.String()).Scan(&prevID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("flip previous latest parse: %w", err)
	}
	if prevID.Valid {
		parsed, err := uuid.Parse(prevID.String)
		if err != nil {
			return fmt.Errorf("previous parse id: %w", err)
		}
		prev := domain.ParseID(parsed)
		doc.SupersedesID = &prev
	}
	doc.IsLatest = true

	statsJSON, err := json.Marshal(doc.Stats)
	if err != nil {
		return fmt.Errorf("marshal parse stats: %w", err)
	}
	var supersedes any
	if doc.SupersedesID != nil {
		supersedes = doc.SupersedesID.String()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO parsed_documents
			(id, evidence_id, parser_id, parser_version, config_hash, clean_text,
			 clean_text_hash, stats, warnings, status, is_latest, supersedes_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $12)
	`, doc.ID.String(), doc.EvidenceID.String(), doc.ParserID, doc.ParserVersion,
		doc.ConfigHash, doc.CleanText, doc.CleanTextHash, statsJSON,
		pq.Array(doc.Warnings), string(doc.Status), supersedes, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert parsed document: %w", err)
	}

	for _, n := range nodes {
		_, err := q.ExecContext(ctx, `
			INSERT INTO provision_nodes
				(parse_id, node_type, path, parent_path, order_index, depth,
				 raw_text, norm_text, start_offset, end_offset)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, n.ParseID.String(), string(n.Type), n.Path, n.ParentPath, n.OrderIndex,
			n.Depth, n.RawText, n.NormText, n.StartOffset, n.EndOffset)
		if err != nil {
			return fmt.Errorf("insert provision node %s: %w", n.Path, err)
		}
	}
	return nil
}

const parseColumns = `id, evidence_id, parser_id, parser_version, config_hash, clean_text,
	clean_text_hash, stats, warnings, status, is_latest, supersedes_id, created_at`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ParseID) (*ParsedDocument, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+parseColumns+` FROM parsed_documents WHERE id = $1`, id.String())
	return scanParse(row)
}

func (s *PostgresStore) LatestByEvidence(ctx context.Context, evidenceID domain.EvidenceID) (*ParsedDocument, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+parseColumns+` FROM parsed_documents WHERE evidence_id = $1 AND is_latest`,
		evidenceID.String())
	return scanParse(row)
}

func (s *PostgresStore) NodesByParse(ctx context.Context, parseID domain.ParseID) ([]*ProvisionNode, error) {
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, `
		SELECT parse_id, node_type, path, parent_path, order_index, depth,
		       raw_text, norm_text, start_offset, end_offset
		FROM provision_nodes WHERE parse_id = $1 ORDER BY order_index
	`, parseID.String())
	if err != nil {
		return nil, fmt.Errorf("list provision nodes: %w", err)
	}
	defer rows.Close()
	var out []*ProvisionNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, rows.Err()
}

func (s *PostgresStore) NodeByPath(ctx context.Context, parseID domain.ParseID, path string) (*ProvisionNode, error) {
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, `
		SELECT parse_id, node_type, path, parent_path, order_index, depth,
		       raw_text, norm_text, start_offset, end_offset
		FROM provision_nodes WHERE parse_id = $1 AND path = $2
	`, parseID.String(), path)
	return scanNode(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParse(row rowScanner) (*ParsedDocument, error) {
	var (
		doc        ParsedDocument
		rawID      string
		rawEvID    string
		statsJSON  []byte
		status     string
		supersedes sql.NullString
	)
	err := row.Scan(&rawID, &rawEvID, &doc.ParserID, &doc.ParserVersion, &doc.ConfigHash,
		&doc.CleanText, &doc.CleanTextHash, &statsJSON, pq.Array(&doc.Warnings),
		&status, &doc.IsLatest, &supersedes, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan parsed document: %w", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan parse id: %w", err)
	}
	evID, err := uuid.Parse(rawEvID)
	if err != nil {
		return nil, fmt.Errorf("scan parse evidence id: %w", err)
	}
	doc.ID = domain.ParseID(id)
	doc.EvidenceID = domain.EvidenceID(evID)
	doc.Status = Status(status)
	if err := json.Unmarshal(statsJSON, &doc.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal parse stats: %w", err)
	}
	if supersedes.Valid {
		parsed, err := uuid.Parse(supersedes.String)
		if err != nil {
			return nil, fmt.Errorf("scan supersedes id: %w", err)
		}
		prev := domain.ParseID(parsed)
		doc.SupersedesID = &prev
	}
	return &doc, nil
}

func scanNode(row rowScanner) (*ProvisionNode, error) {
	var (
		n       ProvisionNode
		rawID   string
		rawType string
	)
	err := row.Scan(&rawID, &rawType, &n.Path, &n.ParentPath, &n.OrderIndex, &n.Depth,
		&n.RawText, &n.NormText, &n.StartOffset, &n.EndOffset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan provision node: %w", err)
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan node parse id: %w", err)
	}
	n.ParseID = domain.ParseID(parsed)
	n.Type = NodeType(rawType)
	return &n, nil
}

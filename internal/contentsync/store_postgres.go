package contentsync

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

// PostgresStore persists content-sync events in PostgreSQL. Statements run on
// the context transaction when one is present, which is how rule status
// transitions and their sync events commit atomically.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, rule_id, event_type, effective_from, status, version, attempts, dead_letter_reason, note, payload, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO content_sync_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		ev.ID, ev.RuleID.String(), string(ev.Type), ev.EffectiveFrom,
		string(ev.Status), ev.Version, ev.Attempts, string(ev.DeadLetterReason),
		ev.Note, []byte(ev.Payload), ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM content_sync_events WHERE id = $1`
	row := tx.Resolve(ctx, s.db).QueryRowContext(ctx, query, id)
	return scanEvent(row)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Event, error) {
	return s.ListByStatus(ctx, StatusPending)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM content_sync_events WHERE status = $1 ORDER BY created_at`
	rows, err := tx.Resolve(ctx, s.db).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list sync events: %w", err)
	}
	defer rows.Close()
	var out []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpdateStatus is the optimistic-lock write: the WHERE clause pins the
// version a caller last read, so a lost race affects zero rows.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, change StatusChange) error {
	query := `
		UPDATE content_sync_events
		SET status = $3, version = version + 1, attempts = $4,
		    dead_letter_reason = $5, note = $6, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	res, err := tx.Resolve(ctx, s.db).ExecContext(ctx, query,
		id, change.ExpectedVersion, string(change.Status), change.Attempts,
		string(change.DeadLetterReason), change.Note)
	if err != nil {
		return fmt.Errorf("update sync event status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a missing row from a lost version race.
		if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	return nil
}

func scanEvent(row interface{ Scan(dest ...any) error }) (*Event, error) {
	var (
		ev        Event
		rawRuleID string
		evType    string
		status    string
		reason    string
		payload   []byte
	)
	err := row.Scan(&ev.ID, &rawRuleID, &evType, &ev.EffectiveFrom, &status,
		&ev.Version, &ev.Attempts, &reason, &ev.Note, &payload,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan sync event: %w", err)
	}
	ruleID, err := uuid.Parse(rawRuleID)
	if err != nil {
		return nil, fmt.Errorf("scan sync event rule id: %w", err)
	}
	ev.RuleID = domain.RuleID(ruleID)
	ev.Type = EventType(evType)
	ev.Status = Status(status)
	ev.DeadLetterReason = DeadLetterReason(reason)
	ev.Payload = payload
	return &ev, nil
}

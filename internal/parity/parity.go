// Package parity verifies that two rule schemas hold the same data. It is
// used during storage migrations: the legacy schema and the new one are
// compared table by table, and any drift blocks the cutover.
package parity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Table names one compared table and the columns forming its logical key.
type Table struct {
	Name       string
	KeyColumns []string
}

// DefaultTables is the rule schema surface compared by `normctl parity`.
var DefaultTables = []Table{
	{Name: "rule_table", KeyColumns: []string{"id"}},
	{Name: "rule_version", KeyColumns: []string{"rule_id", "version"}},
	{Name: "rule_snapshot", KeyColumns: []string{"rule_id", "version", "snapshot_date"}},
	{Name: "rule_calculation", KeyColumns: []string{"rule_id", "calculation_date"}},
}

// TableReport is the comparison result for one table.
type TableReport struct {
	Table           string
	SourceCount     int
	TargetCount     int
	MissingInTarget []string
	MissingInSource []string
}

// Match reports whether the table is identical on both sides.
func (r TableReport) Match() bool {
	return r.SourceCount == r.TargetCount &&
		len(r.MissingInTarget) == 0 && len(r.MissingInSource) == 0
}

// Report is the full comparison result.
type Report struct {
	Tables []TableReport
}

// Match reports whether every compared table is identical.
func (r Report) Match() bool {
	for _, t := range r.Tables {
		if !t.Match() {
			return false
		}
	}
	return true
}

// Checker compares a source and a target schema.
type Checker struct {
	source *sql.DB
	target *sql.DB
	log    *slog.Logger
}

func NewChecker(source, target *sql.DB, log *slog.Logger) *Checker {
	return &Checker{source: source, target: target, log: log}
}

// Run compares every table and returns the aggregate report. It never stops
// at the first mismatch: operators want the full drift picture in one pass.
func (c *Checker) Run(ctx context.Context, tables []Table) (Report, error) {
	var report Report
	for _, t := range tables {
		tr, err := c.compareTable(ctx, t)
		if err != nil {
			return report, fmt.Errorf("compare %s: %w", t.Name, err)
		}
		if !tr.Match() {
			c.log.Warn("parity mismatch",
				"table", t.Name,
				"source_count", tr.SourceCount, "target_count", tr.TargetCount,
				"missing_in_target", len(tr.MissingInTarget),
				"missing_in_source", len(tr.MissingInSource))
		}
		report.Tables = append(report.Tables, tr)
	}
	return report, nil
}

func (c *Checker) compareTable(ctx context.Context, t Table) (TableReport, error) {
	srcKeys, err := loadKeys(ctx, c.source, t)
	if err != nil {
		return TableReport{}, fmt.Errorf("source: %w", err)
	}
	tgtKeys, err := loadKeys(ctx, c.target, t)
	if err != nil {
		return TableReport{}, fmt.Errorf("target: %w", err)
	}

	report := TableReport{
		Table:       t.Name,
		SourceCount: len(srcKeys),
		TargetCount: len(tgtKeys),
	}
	srcSet := toSet(srcKeys)
	tgtSet := toSet(tgtKeys)
	for key := range srcSet {
		if !tgtSet[key] {
			report.MissingInTarget = append(report.MissingInTarget, key)
		}
	}
	for key := range tgtSet {
		if !srcSet[key] {
			report.MissingInSource = append(report.MissingInSource, key)
		}
	}
	sort.Strings(report.MissingInTarget)
	sort.Strings(report.MissingInSource)
	return report, nil
}

// loadKeys reads the composite key of every row, formatted as a stable
// pipe-joined string.
func loadKeys(ctx context.Context, db *sql.DB, t Table) ([]string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.KeyColumns, ", "), t.Name)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	vals := make([]any, len(t.KeyColumns))
	ptrs := make([]any, len(t.KeyColumns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = formatKeyPart(v)
		}
		keys = append(keys, strings.Join(parts, "|"))
	}
	return keys, rows.Err()
}

func formatKeyPart(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

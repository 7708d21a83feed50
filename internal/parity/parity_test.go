package parity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerReportsMatch(t *testing.T) {
	source, sourceMock, err := sqlmock.New()
	require.NoError(t, err)
	defer source.Close()
	target, targetMock, err := sqlmock.New()
	require.NoError(t, err)
	defer target.Close()

	for _, mock := range []sqlmock.Sqlmock{sourceMock, targetMock} {
		mock.ExpectQuery(`SELECT id FROM rule_table`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r2"))
		mock.ExpectQuery(`SELECT rule_id, version FROM rule_version`).
			WillReturnRows(sqlmock.NewRows([]string{"rule_id", "version"}).
				AddRow("r1", 1).AddRow("r1", 2).AddRow("r2", 1))
	}

	tables := []Table{
		{Name: "rule_table", KeyColumns: []string{"id"}},
		{Name: "rule_version", KeyColumns: []string{"rule_id", "version"}},
	}
	report, err := NewChecker(source, target, testLogger()).Run(context.Background(), tables)
	require.NoError(t, err)
	assert.True(t, report.Match())
	require.Len(t, report.Tables, 2)
	assert.Equal(t, 2, report.Tables[0].SourceCount)
	assert.Equal(t, 3, report.Tables[1].TargetCount)

	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestCheckerReportsDrift(t *testing.T) {
	source, sourceMock, err := sqlmock.New()
	require.NoError(t, err)
	defer source.Close()
	target, targetMock, err := sqlmock.New()
	require.NoError(t, err)
	defer target.Close()

	sourceMock.ExpectQuery(`SELECT rule_id, version FROM rule_version`).
		WillReturnRows(sqlmock.NewRows([]string{"rule_id", "version"}).
			AddRow("r1", 1).AddRow("r2", 1))
	targetMock.ExpectQuery(`SELECT rule_id, version FROM rule_version`).
		WillReturnRows(sqlmock.NewRows([]string{"rule_id", "version"}).
			AddRow("r1", 1).AddRow("r3", 1))

	tables := []Table{{Name: "rule_version", KeyColumns: []string{"rule_id", "version"}}}
	report, err := NewChecker(source, target, testLogger()).Run(context.Background(), tables)
	require.NoError(t, err)
	assert.False(t, report.Match())

	tr := report.Tables[0]
	assert.Equal(t, []string{"r2|1"}, tr.MissingInTarget)
	assert.Equal(t, []string{"r3|1"}, tr.MissingInSource)
}

func TestCheckerCountMismatchWithEqualKeySets(t *testing.T) {
	source, sourceMock, err := sqlmock.New()
	require.NoError(t, err)
	defer source.Close()
	target, targetMock, err := sqlmock.New()
	require.NoError(t, err)
	defer target.Close()

	// A duplicated row changes the count without changing the key set.
	sourceMock.ExpectQuery(`SELECT id FROM rule_table`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r1"))
	targetMock.ExpectQuery(`SELECT id FROM rule_table`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))

	tables := []Table{{Name: "rule_table", KeyColumns: []string{"id"}}}
	report, err := NewChecker(source, target, testLogger()).Run(context.Background(), tables)
	require.NoError(t, err)
	assert.False(t, report.Match(), "row count drift must fail parity even when key sets agree")
}

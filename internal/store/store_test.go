package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"file-validator-service/internal/records"
	"file-validator-service/internal/reporter"
)

// stepClock returns start, start+1m, start+2m, ...
func stepClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		Path: filepath.Join(t.TempDir(), "db", "validations.db"),
		Now:  stepClock(time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StartFinish(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	rec, err := s.Start(ctx, "CONTACTS", "/data/contacts.csv")
	require.NoError(t, err)
	assert.Equal(t, StatusValidating, rec.Status)
	assert.NotEmpty(t, rec.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusValidating, got.Status)
	assert.Nil(t, got.EndedAt)
	assert.Nil(t, got.Summary)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))

	logs := records.NewStream()
	logs.Add("/data/contacts.csv", "Verify File Read: Passed for /data/contacts.csv", true)
	report := &reporter.Report{
		Summary:  reporter.Table{Columns: []string{reporter.ColSummary, reporter.ColDetails}, Rows: [][]string{{"File path", "/data/contacts.csv"}}},
		Detailed: reporter.Table{Columns: reporter.DetailedColumns, Rows: [][]string{}},
	}
	require.NoError(t, s.Finish(ctx, rec.ID, Outcome{
		Logs:       logs,
		OutputPath: []string{"reports/report.json"},
		Report:     report,
	}))

	got, err = s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.After(got.StartedAt))
	assert.Equal(t, "CONTACTS", got.Name)
	assert.Equal(t, "/data/contacts.csv", got.InputPath)
	assert.Equal(t, logs.Records(), got.Logs)
	assert.Equal(t, []string{"reports/report.json"}, got.OutputPath)
	require.NotNil(t, got.Summary)
	assert.Equal(t, report.Summary, *got.Summary)
	assert.Equal(t, reporter.DetailedColumns, got.Detailed.Columns)
}

func TestStore_Fail(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	rec, err := s.Start(ctx, "", "/data/missing.csv")
	require.NoError(t, err)

	logs := records.NewStream()
	logs.Add("/data/missing.csv", "Verify File Exists: Failed for /data/missing.csv", false)
	require.NoError(t, s.Fail(ctx, rec.ID, logs))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.Len(t, got.Logs, 1)
	assert.False(t, got.Logs[0].Passed)
	assert.Nil(t, got.Summary)
	assert.Nil(t, got.OutputPath)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Finish(ctx, "nope", Outcome{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var ids []string
	for _, p := range []string{"a.csv", "b.csv", "c.csv"} {
		rec, err := s.Start(ctx, "T", p)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID}, "newest first")

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Start(context.Background(), "T", "x.csv")
	require.NoError(t, err)
	_, err = s.Get(context.Background(), rec.ID)
	assert.NoError(t, err)
}

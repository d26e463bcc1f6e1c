package artifact

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Day   int    `json:"day"`
	Label string `json:"label"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "run-1", "/day-0.json", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "run-1", "day-1.json", []byte(`{"a":2}`)))
	require.NoError(t, s.Put(ctx, "run-2", "day-0.json", []byte(`{"a":3}`)))
	require.NoError(t, s.Put(ctx, "run-1", "day-1.json", []byte(`{"a":4}`)))

	got, err := s.Get(ctx, "run-1", "day-0.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got, err = s.Get(ctx, "run-1", "day-1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":4}`, string(got), "put overwrites")

	paths, err := s.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"day-0.json", "day-1.json"}, paths)

	_, err = s.Get(ctx, "run-1", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Put(ctx, "", "x", nil))
	assert.Error(t, s.Put(ctx, "run-1", "../escape", nil))

	require.NoError(t, PutJSON(ctx, s, "run-3", "skeleton.json", report{Day: 2, Label: "Nîmes & Arles"}))
	var back report
	require.NoError(t, GetJSON(ctx, s, "run-3", "skeleton.json", &back))
	assert.Equal(t, report{Day: 2, Label: "Nîmes & Arles"}, back)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLStore(DialectSQLite, filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: DialectSQLite}
	assert.Equal(t, "SELECT ? , ?, '$x'", s.rebind("SELECT $1 , $12, '$x'"))
	pg := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "SELECT $1", pg.rebind("SELECT $1"))
}

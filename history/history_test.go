package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ad_copy_planner/generator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "data", "history.json"), DefaultLimit)
}

func TestStore_EmptyWhenMissing(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.List(""))
}

func TestStore_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Entry{ID: "a", SeedSummary: "first"}))
	require.NoError(t, s.Add(Entry{ID: "b", SeedSummary: "second"}))

	got := s.List("")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestStore_Cap(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 21; i++ {
		require.NoError(t, s.Add(Entry{ID: fmt.Sprintf("e%02d", i)}))
	}
	got := s.List("")
	require.Len(t, got, 20)
	assert.Equal(t, "e20", got[0].ID)
	assert.Equal(t, "e01", got[19].ID)
	for _, e := range got {
		assert.NotEqual(t, "e00", e.ID)
	}
}

func TestStore_CorruptFileIgnored(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.path), 0o700))
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o600))

	assert.Empty(t, s.List(""))
	require.NoError(t, s.Add(Entry{ID: "x"}))
	assert.Len(t, s.List(""), 1)
}

func TestStore_DeleteAndTenantScope(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Entry{ID: "a", TenantID: "t1"}))
	require.NoError(t, s.Add(Entry{ID: "b", TenantID: "t2"}))

	assert.Len(t, s.List("t1"), 1)
	_, err := s.Get("t1", "b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("t1", "b"), ErrNotFound)

	require.NoError(t, s.Delete("t2", "b"))
	assert.Len(t, s.List(""), 1)
	assert.ErrorIs(t, s.Delete("", "b"), ErrNotFound)
}

func TestNewEntry(t *testing.T) {
	sess := generator.NewSession("s1", "t1").WithSeed(generator.Seed{Kind: generator.SeedScript, Script: "Hello, buy now!"})
	sess.Results = []generator.Variation{{Body: "Hi", Rationale: "short"}}
	e := NewEntry(sess)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "t1", e.TenantID)
	assert.Equal(t, "Hello, buy now!", e.SeedSummary)
	assert.Len(t, e.Variations, 1)
}

func TestStore_CapIsPerTenant(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Entry{ID: "alice-1", TenantID: "alice"}))
	for i := 0; i < 25; i++ {
		require.NoError(t, s.Add(Entry{ID: fmt.Sprintf("bob-%02d", i), TenantID: "bob"}))
	}

	alice := s.List("alice")
	require.Len(t, alice, 1)
	assert.Equal(t, "alice-1", alice[0].ID)

	bob := s.List("bob")
	require.Len(t, bob, DefaultLimit)
	assert.Equal(t, "bob-24", bob[0].ID)
	assert.Equal(t, "bob-05", bob[DefaultLimit-1].ID)
}

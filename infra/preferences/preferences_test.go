package preferences

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/amirasaad/fxdate/pkg/preferences"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closableStore interface {
	preferences.Store
	Close() error
}

func exerciseStore(t *testing.T, s preferences.Store) {
	t.Helper()
	ctx := context.Background()

	v, err := s.GetInt(ctx, preferences.TargetIndexKey, preferences.DefaultTargetIndex)
	require.NoError(t, err)
	assert.Equal(t, preferences.DefaultTargetIndex, v)

	require.NoError(t, s.SetInt(ctx, preferences.TargetIndexKey, 11))
	require.NoError(t, s.SetInt(ctx, preferences.TargetIndexKey, 12))
	v, err = s.GetInt(ctx, preferences.TargetIndexKey, preferences.DefaultTargetIndex)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	assert.ErrorIs(t, s.SetInt(ctx, "", 1), preferences.ErrEmptyKey)
}

func TestStores(t *testing.T) {
	tests := []struct {
		name string
		open func(t *testing.T) (closableStore, error)
	}{
		{
			name: "badger in memory",
			open: func(t *testing.T) (closableStore, error) { return OpenBadger("") },
		},
		{
			name: "badger on disk",
			open: func(t *testing.T) (closableStore, error) { return OpenBadger(t.TempDir()) },
		},
		{
			name: "sqlite",
			open: func(t *testing.T) (closableStore, error) { return OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"), "test") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.open(t)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			exerciseStore(t, s)
		})
	}
}

func TestBadgerStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, preferences.BaseIndexKey, 5))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	v, err := s.GetInt(ctx, preferences.BaseIndexKey, preferences.DefaultBaseIndex)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	_, err := OpenPostgres("", "test")
	assert.Error(t, err)
}

package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(KeyAuthToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(KeyAuthToken, "tok-1"))
	value, err := s.Get(KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", value)

	// second write replaces the value
	require.NoError(t, s.Set(KeyAuthToken, "tok-2"))
	value, err = s.Get(KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", value)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(KeyLastGroup, "42"))
	require.NoError(t, s.Delete(KeyLastGroup))

	_, err := s.Get(KeyLastGroup)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete("never-written"))
}

func TestStore_Keys(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set(KeyNavHistory, "[]"))
	require.NoError(t, s.Set(KeyAuthToken, "t"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAuthToken, KeyNavHistory}, keys)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyLastGroup, "7"))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(KeyLastGroup)
	require.NoError(t, err)
	assert.Equal(t, "7", value, "state survives process restarts")
}

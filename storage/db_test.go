package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("alpha"), []byte{1, 2, 3}))

	got, err := db.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestMemDBMissingKey(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBCopiesValue(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte{9}
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 1

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{9}, got)
}

package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDatabasePutGetDelete(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	has, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	has, err = db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)

	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDatabaseBatch(t *testing.T) {
	db := NewMemDatabase()
	defer db.Close()

	b := db.NewBatch()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))
	require.Greater(t, b.ValueSize(), 0)
	require.NoError(t, b.Write())

	v, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

func TestOpenEmptyDirIsEphemeral(t *testing.T) {
	db, err := Open(LevelDB, "", 16, 16)
	require.NoError(t, err)
	defer db.Close()
	_, ok := db.(*MemDatabase)
	require.True(t, ok)
}

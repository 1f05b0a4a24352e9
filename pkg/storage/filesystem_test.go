package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("att_1/log.txt", strings.NewReader("jam at tray 2"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.True(t, store.Exists("att_1/log.txt"))

	f, err := store.Open("att_1/log.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "jam at tray 2", string(body))

	require.NoError(t, store.Delete("att_1/log.txt"))
	assert.False(t, store.Exists("att_1/log.txt"))
}

func TestLocalStorageRejectsOversized(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.bin", strings.NewReader("0123456789"), 4)
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.False(t, store.Exists("big.bin"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../escape.txt", strings.NewReader("x"), 10)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

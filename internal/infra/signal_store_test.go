package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/sigwatch/internal/message"
)

func newTestSignalStore(t *testing.T) *FileSignalStore {
	t.Helper()
	store := NewSignalStoreInDir(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Ensure())
	return store
}

func TestFileSignalStore_EnsureCreatesEmptyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	store := NewSignalStoreInDir(dir, zap.NewNop())

	require.NoError(t, store.Ensure())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, filepath.Join(dir, "db.sig"), store.Path())
}

func TestFileSignalStore_EnsureKeepsExistingContent(t *testing.T) {
	store := newTestSignalStore(t)
	require.NoError(t, store.WriteMessage(message.New(message.Focus(7))))

	require.NoError(t, store.Ensure())

	_, ok := store.ReadAndValidate(time.Minute)
	assert.True(t, ok)
}

func TestFileSignalStore_TouchEmptiesFile(t *testing.T) {
	store := newTestSignalStore(t)
	require.NoError(t, store.WriteMessage(message.New(message.Focus(7))))

	require.NoError(t, store.Touch())

	meta, err := store.Stat()
	require.NoError(t, err)
	assert.Zero(t, meta.Size)

	_, ok := store.ReadAndValidate(time.Minute)
	assert.False(t, ok)
}

func TestFileSignalStore_WriteAndRead(t *testing.T) {
	store := newTestSignalStore(t)
	msg := message.New(message.Focus(4242))

	require.NoError(t, store.WriteMessage(msg))

	got, ok := store.ReadAndValidate(10 * time.Second)
	require.True(t, ok)
	assert.Equal(t, msg, got)

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"focus"`)
}

func TestFileSignalStore_ReadAndValidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	maxAge := 10 * time.Second

	tests := []struct {
		name    string
		content string
		wantOK  bool
	}{
		{name: "fresh message", content: `{"ctime":1700000000,"action":"focus","target":1}`, wantOK: true},
		{name: "exactly max age", content: `{"ctime":1699999990,"action":"focus","target":1}`, wantOK: true},
		{name: "one second past max age", content: `{"ctime":1699999989,"action":"focus","target":1}`, wantOK: false},
		{name: "empty touch", content: ``, wantOK: false},
		{name: "torn write", content: `{"ctime":17000`, wantOK: false},
		{name: "garbage", content: `not json at all`, wantOK: false},
		{name: "unknown action is returned", content: `{"ctime":1700000000,"action":"reload"}`, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestSignalStore(t)
			store.now = func() time.Time { return now }
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0600))

			_, ok := store.ReadAndValidate(maxAge)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestFileSignalStore_ReadMissingFile(t *testing.T) {
	store := NewSignalStoreInDir(t.TempDir(), zap.NewNop())

	_, ok := store.ReadAndValidate(time.Minute)
	assert.False(t, ok)

	_, err := store.Stat()
	assert.Error(t, err)
}

func TestFileSignalStore_WriteRejectsInvalidMessage(t *testing.T) {
	store := newTestSignalStore(t)

	err := store.WriteMessage(message.Message{CTime: 1})
	assert.Error(t, err)

	meta, err := store.Stat()
	require.NoError(t, err)
	assert.Zero(t, meta.Size, "file must be untouched")
}

func TestFileSignalStore_ConcurrentWritersNeverTear(t *testing.T) {
	store := newTestSignalStore(t)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = store.WriteMessage(message.New(message.Focus(uint32(i))))
			_ = store.Touch()
		}
	}()

	for i := 0; i < 200; i++ {
		data, err := store.read()
		require.NoError(t, err)
		if len(data) == 0 {
			continue
		}
		_, err = message.Decode(data)
		assert.NoError(t, err, "reader observed partial content %q", data)
	}
	<-done
}

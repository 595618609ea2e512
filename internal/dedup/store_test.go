package dedup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "sent_log.json"), logging.Discard())
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := newTestFileStore(t)
	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFileStoreInvalidJSONIsEmpty(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFileStoreWrongShapeIsEmpty(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"a":1}`), 0o644))

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFileStoreSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	require.NoError(t, store.Save(ctx, NewSet("+66812345678|ACME|สวัสดี", "+66899999999|ACME|hi")))
	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, set.Has("+66812345678|ACME|สวัสดี"))
	assert.Equal(t, 2, set.Len())

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "สวัสดี", "non-ASCII text should not be escaped")
	assert.True(t, strings.HasPrefix(string(raw), "[\n  \""), "expected two-space indented array, got %q", raw)
}

func TestFileStoreSaveMergesWithDisk(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	existing, _ := json.Marshal([]string{"old|hi"})
	require.NoError(t, os.WriteFile(store.Path(), existing, 0o644))

	require.NoError(t, store.Save(ctx, NewSet("new|hi")))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new|hi", "old|hi"}, set.Keys())
}

func TestFileStoreConcurrentSavesKeepAllKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "+6681234567" + string(rune('a'+n)) + "|hi"
			assert.NoError(t, store.Save(ctx, NewSet(key)))
		}(i)
	}
	wg.Wait()

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, set.Len())
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Save(context.Background(), NewSet("k|hi")))

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sent_log.json", entries[0].Name())
}

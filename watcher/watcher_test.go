package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shiftscan/mapping"
	"shiftscan/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestIsMappingFile(t *testing.T) {
	assert.True(t, isMappingFile("/in/map.csv"))
	assert.True(t, isMappingFile("/in/MAP.XLSX"))
	assert.False(t, isMappingFile("/in/map.txt"))
	assert.False(t, isMappingFile("/in/.map.csv.swp"))
	assert.False(t, isMappingFile("/in/~$map.xlsx"))
}

func TestMappingDirLoadsDroppedFile(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	table, err := mapping.NewTable(testutil.NewDB(t), zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	m := New(dir, "", table, zap.NewNop())
	m.settle = 50 * time.Millisecond

	var mu sync.Mutex
	var results []error
	m.OnLoad(func(path string, n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("code,path\nZ,/z\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.csv"), []byte("code,path\nA1,/a\nB2,/b\n"), 0644))

	require.Eventually(t, func() bool {
		return table.Snapshot().Len() == 2
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := table.Snapshot().Lookup("Z")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("code,path\nC3,\n"), 0644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 2 && results[len(results)-1] != nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 2, table.Snapshot().Len(), "rejected file leaves the table alone")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

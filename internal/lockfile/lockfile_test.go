package lockfile

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquire_SerializesConcurrentHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	var (
		mu      sync.Mutex
		order   []int
		active  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := Acquire(path)
			require.NoError(t, err)

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			order = append(order, i)
			mu.Unlock()

			require.NoError(t, lk.Close())
		}()
	}
	wg.Wait()

	require.Len(t, order, 8)
	require.Equal(t, 1, maxSeen, "lock must never be held by more than one goroutine at a time")
}

func TestAcquire_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", ".lock")
	lk, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lk.Close())
}

func TestClose_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	lk, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lk.Close())
	require.NoError(t, lk.Close())
}

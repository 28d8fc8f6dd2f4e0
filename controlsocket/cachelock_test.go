package controlsocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLockTableMutualExclusion(t *testing.T) {
	table := NewCacheLockTable()
	key := LockKey{Server: "s1", Path: "/home", Reason: "list"}

	release := table.Acquire(key)

	var secondAcquired bool
	done := make(chan struct{})
	go func() {
		table.Acquire(key)
		secondAcquired = true
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Acquire should not have returned while lock is held")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	<-done
	assert.True(t, secondAcquired)
}

func TestCacheLockTableFIFOOrdering(t *testing.T) {
	table := NewCacheLockTable()
	key := LockKey{Server: "s1", Path: "/x", Reason: "list"}
	release := table.Acquire(key)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rel := table.Acquire(key)
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			rel()
		}(i)
		time.Sleep(5 * time.Millisecond) // stagger enqueue order
	}
	release()
	wg.Wait()
	require.Len(t, order, 3)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestCacheLockTableTryAcquire(t *testing.T) {
	table := NewCacheLockTable()
	key := LockKey{Server: "s1", Path: "/y", Reason: "mkdir"}

	release, ok := table.TryAcquire(key)
	require.True(t, ok)

	_, ok = table.TryAcquire(key)
	assert.False(t, ok)

	release()
	release2, ok := table.TryAcquire(key)
	require.True(t, ok)
	release2()
}

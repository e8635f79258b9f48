package locker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_MutualExclusionPerKey(t *testing.T) {
	k := NewKeyed()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.Acquire("org/app/repo")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "holders of the same key must never overlap")
}

func TestKeyed_DistinctKeysProceedInParallel(t *testing.T) {
	k := NewKeyed()

	releaseA := k.Acquire("a")
	defer releaseA()

	acquired := make(chan struct{})
	go func() {
		release := k.Acquire("b")
		release()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different key blocked behind an unrelated holder")
	}
}

func TestKeyed_ReleaseIsIdempotent(t *testing.T) {
	k := NewKeyed()

	release := k.Acquire("key")
	release()
	release() // second call must be a no-op

	done := make(chan struct{})
	go func() {
		r := k.Acquire("key")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key stayed locked after release")
	}
}

func TestKeyed_EntriesAreReclaimed(t *testing.T) {
	k := NewKeyed()

	for i := 0; i < 100; i++ {
		release := k.Acquire("ephemeral")
		release()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries, "released keys must not accumulate")
}

package chat

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("u1/c1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most 1 concurrent holder per key, saw %d", maxActive)
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlock1 := km.lock("u1/c1")
	defer unlock1()

	done := make(chan struct{})
	go func() {
		unlock2 := km.lock("u1/c2")
		unlock2()
		close(done)
	}()

	<-done // would deadlock if keys shared a lock
}

func TestKeyedMutex_EntriesReleased(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("u1/c1")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.entries) != 0 {
		t.Errorf("expected lock table drained, got %d entries", len(km.entries))
	}
}

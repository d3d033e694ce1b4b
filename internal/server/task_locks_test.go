package server

import (
	"sync"
	"testing"
	"time"
)

func TestTaskLocksSerializeSameID(t *testing.T) {
	locks := newTaskLocks()
	unlock := locks.Lock(1)

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock(1)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestTaskLocksIndependentIDs(t *testing.T) {
	locks := newTaskLocks()
	unlock := locks.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different id blocked")
	}
}

func TestTaskLocksDrain(t *testing.T) {
	locks := newTaskLocks()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(9)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if locks.size() != 0 {
		t.Fatalf("expected empty lock table, got %d", locks.size())
	}
}

package server

import "sync"

// taskLocks hands out one mutex per task id. Entries are reference counted
// and removed once no caller holds or waits on them.
type taskLocks struct {
	mu    sync.Mutex
	locks map[int64]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: map[int64]*taskLock{}}
}

// Lock blocks until the caller owns id and returns the matching unlock func.
func (l *taskLocks) Lock(id int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &taskLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *taskLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

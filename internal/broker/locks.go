package broker

import "sync"

// userLocks serializes trade execution per user. The lock table grows by
// one mutex per user seen since startup; entries are never evicted, which
// is acceptable for the account counts this simulator handles.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// lock acquires the mutex for userID and returns its unlock func.
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

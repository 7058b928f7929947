package store

import "sync"

// ThreadLocks grants one active turn per thread.
type ThreadLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{active: map[string]struct{}{}}
}

// TryLock claims threadID. It reports false when another turn holds it.
// The returned release func is safe to call more than once.
func (l *ThreadLocks) TryLock(threadID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[threadID]; busy {
		return nil, false
	}
	l.active[threadID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, threadID)
			l.mu.Unlock()
		})
	}, true
}

func (l *ThreadLocks) Busy(threadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.active[threadID]
	return busy
}

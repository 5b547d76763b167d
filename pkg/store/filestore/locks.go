package filestore

import "sync"

// idLocks hands out one mutex per chat id. Entries are never freed; the map
// is bounded by the number of distinct conversations seen by this process.
type idLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *idLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	mu, ok := l.m[id]
	if !ok {
		mu = &sync.Mutex{}
		l.m[id] = mu
	}
	l.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}

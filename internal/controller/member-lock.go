package controller

import "sync"

type memberLock struct {
	mu   sync.Mutex
	refs int
}

// memberLocks serializes the connection lifecycle of a single member:
// binding a conn, releasing it and removing the member. Entries live only
// while somebody holds or waits for them.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

func newMemberLocks() *memberLocks {
	return &memberLocks{
		locks: make(map[string]*memberLock),
	}
}

func (l *memberLocks) lock(roomId, memberId string) (unlock func()) {
	key := roomId + "/" + memberId

	l.mu.Lock()
	ml, ok := l.locks[key]
	if !ok {
		ml = &memberLock{}
		l.locks[key] = ml
	}
	ml.refs++
	l.mu.Unlock()

	ml.mu.Lock()

	return func() {
		ml.mu.Unlock()

		l.mu.Lock()
		ml.refs--
		if ml.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

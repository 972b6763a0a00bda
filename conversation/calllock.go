package conversation

import "sync"

// callLocks serialises work per CallSid. Entries are dropped once no
// goroutine holds or waits on them.
type callLocks struct {
	mu    sync.Mutex
	locks map[string]*callLock
}

type callLock struct {
	sync.Mutex
	refs int
}

func newCallLocks() *callLocks {
	return &callLocks{locks: make(map[string]*callLock)}
}

// lock blocks until callSid is free and returns the matching unlock
func (c *callLocks) lock(callSid string) func() {
	c.mu.Lock()
	l, ok := c.locks[callSid]
	if !ok {
		l = &callLock{}
		c.locks[callSid] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, callSid)
		}
		c.mu.Unlock()
	}
}

func (c *callLocks) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

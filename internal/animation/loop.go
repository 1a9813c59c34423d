package animation

import "sync"

// Loop guards a self-rescheduling frame chain. Each mounted chain carries a
// generation; once the view unmounts (or remounts) older frames are refused
// and must not schedule a successor.
type Loop struct {
	mu      sync.Mutex
	gen     uint64
	mounted bool
}

// Mount starts a new chain and returns its generation.
func (l *Loop) Mount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.mounted = true
	return l.gen
}

// Unmount invalidates the current chain.
func (l *Loop) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.mounted = false
}

// Accept reports whether a frame of generation gen may run and reschedule.
func (l *Loop) Accept(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mounted && gen == l.gen
}

// Mounted reports whether a chain is live.
func (l *Loop) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mounted
}

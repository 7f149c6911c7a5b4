package realtime

import (
	"sync"
	"time"
)

// Window suppresses duplicate delivery of the same logical notification, e.g.
// one arriving over the push channel and again via a follow-up list refresh.
// Signatures are cleared wholesale on a fixed period rather than per entry, so
// a duplicate straddling a clear is admitted twice; never the reverse.
type Window struct {
	mu   sync.Mutex
	seen map[string]struct{}
	done chan struct{}
	once sync.Once
}

// NewWindow starts the clearing loop. Stop must be called to release it.
func NewWindow(interval time.Duration) *Window {
	w := &Window{
		seen: make(map[string]struct{}),
		done: make(chan struct{}),
	}
	go w.clearLoop(interval)
	return w
}

// Admit records the signature and reports whether it is the first sighting
// within the current window.
func (w *Window) Admit(signature string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[signature]; dup {
		return false
	}
	w.seen[signature] = struct{}{}
	return true
}

func (w *Window) Stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *Window) clearLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.seen = make(map[string]struct{})
			w.mu.Unlock()
		}
	}
}

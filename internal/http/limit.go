package http

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// writeLimit caps labeling and manual-entry POSTs per client and minute.
const writeLimit = 30

type writeWindow struct {
	start time.Time
	count int
}

// writeLimiter throttles write requests with a fixed one-minute window per
// client address. Idle windows are pruned inline on the next call, so no
// background goroutine is needed.
type writeLimiter struct {
	mu      sync.Mutex
	windows map[string]*writeWindow
}

func newWriteLimiter() *writeLimiter {
	return &writeLimiter{windows: make(map[string]*writeWindow)}
}

func (l *writeLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for a, w := range l.windows {
		if now.Sub(w.start) > 10*time.Minute {
			delete(l.windows, a)
		}
	}

	w, ok := l.windows[addr]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[addr] = &writeWindow{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= writeLimit
}

// clientIP reports the peer address of the connection. The server binds to
// localhost and sits behind no proxy, so forwarding headers are ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package gateway

import "sync"

// Registry is the concurrency-safe set of live connections. Entries are
// added only after a completed handshake and removed exactly once when the
// underlying socket closes or errors.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[*Conn]struct{})}
}

func (r *Registry) Add(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = struct{}{}
}

// Remove is idempotent: the error handler and the close handler may both
// call it for the same connection.
func (r *Registry) Remove(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEach runs fn on every connection matching the predicate. It iterates a
// snapshot taken under the read lock, so a connection closing concurrently
// is skipped rather than an error.
func (r *Registry) ForEach(match func(*Conn) bool, fn func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for conn := range r.conns {
		snapshot = append(snapshot, conn)
	}
	r.mu.RUnlock()

	for _, conn := range snapshot {
		if conn.IsClosed() || !match(conn) {
			continue
		}
		fn(conn)
	}
}

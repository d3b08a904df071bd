package gateway

import "log/slog"

// Fanout broadcasts application events to every live connection of a
// conversation's two participants.
//
// Delivery is best-effort and in-process: no guarantees regarding ordering,
// durability, or retries. A participant with zero live connections is not an
// error; a user with several connections receives the event on all of them.
type Fanout struct {
	log      *slog.Logger
	registry *Registry
}

func NewFanout(log *slog.Logger, registry *Registry) *Fanout {
	return &Fanout{log: log, registry: registry}
}

func (f *Fanout) Broadcast(participantA, participantB string, event Event) {
	f.registry.ForEach(
		func(conn *Conn) bool {
			return conn.UserID() == participantA || conn.UserID() == participantB
		},
		func(conn *Conn) {
			if err := conn.WriteEvent(event); err != nil {
				f.log.Debug("Fan-out write failed", "user", conn.UserID(), "error", err)
			}
		},
	)
}

package websocket

import "github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"

// ConnectionRegistry maps each online user to its live connections in insertion order.
// It is not safe for concurrent use; Hub serializes access.
type ConnectionRegistry struct {
	users map[domain.UserID][]Connection
	total int
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{users: make(map[domain.UserID][]Connection)}
}

// Add registers conn for user. It reports whether this is the user's first connection.
func (r *ConnectionRegistry) Add(user domain.UserID, conn Connection) (first bool) {
	conns, ok := r.users[user]
	for _, c := range conns {
		if c == conn {
			return false
		}
	}
	r.users[user] = append(conns, conn)
	r.total++
	return !ok
}

// Remove drops conn and reports whether the user has no connections left.
func (r *ConnectionRegistry) Remove(user domain.UserID, conn Connection) (lastGone bool) {
	conns, ok := r.users[user]
	if !ok {
		return false
	}

	idx := -1
	for i, c := range conns {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	r.total--
	if len(conns) == 1 {
		delete(r.users, user)
		return true
	}

	remaining := make([]Connection, 0, len(conns)-1)
	remaining = append(remaining, conns[:idx]...)
	remaining = append(remaining, conns[idx+1:]...)
	r.users[user] = remaining
	return false
}

func (r *ConnectionRegistry) ConnectionsOf(user domain.UserID) []Connection {
	conns := r.users[user]
	out := make([]Connection, len(conns))
	copy(out, conns)
	return out
}

func (r *ConnectionRegistry) Contains(user domain.UserID, conn Connection) bool {
	for _, c := range r.users[user] {
		if c == conn {
			return true
		}
	}
	return false
}

func (r *ConnectionRegistry) IsOnline(user domain.UserID) bool {
	_, ok := r.users[user]
	return ok
}

func (r *ConnectionRegistry) Users() []domain.UserID {
	out := make([]domain.UserID, 0, len(r.users))
	for user := range r.users {
		out = append(out, user)
	}
	return out
}

func (r *ConnectionRegistry) OnlineUsers() int {
	return len(r.users)
}

func (r *ConnectionRegistry) Connections() int {
	return r.total
}

package websocket

import "context"

// Connection is one live transport handle owned by a user's registry entry.
type Connection interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
	Close(code int, reason string) error
}

// Transport is a Connection the protocol loop can also read from.
type Transport interface {
	Connection
	ReadFrame() ([]byte, error)
}

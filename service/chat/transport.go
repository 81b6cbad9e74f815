package chat

import "context"

// Sink receives the lifecycle of one socket. Calls come from the socket's
// own goroutines; the manager only posts them to its mailbox.
type Sink struct {
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(code int, reason string)
}

// Socket is one live duplex connection.
type Socket interface {
	ID() string
	// Start begins delivering inbound frames to sink. Called once, after
	// the manager has been told the socket is open.
	Start(sink Sink)
	Send(text string) error
	Close() error
}

// Dialer opens sockets. Dial blocks until the handshake finishes or ctx ends.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// AuthContext supplies the bearer credential. It is owned elsewhere; the
// manager only reads it.
type AuthContext interface {
	IsAuthenticated() bool
	BearerToken() string
}

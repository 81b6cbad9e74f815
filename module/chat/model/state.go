package model

import "fmt"

// ConnectionState is the lifecycle of the single chat socket.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "disconnected"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChange is reported to observers on every transition.
type StateChange struct {
	Old ConnectionState `json:"old"`
	New ConnectionState `json:"new"`
}

func (s *ConnectionState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	case "error":
		*s = StateError
	case "disconnected":
		*s = StateDisconnected
	default:
		return fmt.Errorf("unknown connection state %q", b)
	}
	return nil
}

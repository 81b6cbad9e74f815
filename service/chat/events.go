package chat

import "github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"

type eventKind int

const (
	// requests
	evConnect eventKind = iota
	evReconnect
	evSend
	evLogout
	evAuthChanged
	evForeground
	evAddMessage
	evClearMessages
	evBarrier
	evShutdown

	// socket lifecycle, tagged with the socket generation
	evOpen
	evFrame
	evSocketError
	evSocketClose

	// retry timer, tagged with the timer token
	evRetry
)

var eventNames = [...]string{
	evConnect:       "connect",
	evReconnect:     "reconnect",
	evSend:          "send",
	evLogout:        "logout",
	evAuthChanged:   "auth_changed",
	evForeground:    "foreground",
	evAddMessage:    "add_message",
	evClearMessages: "clear_messages",
	evBarrier:       "barrier",
	evShutdown:      "shutdown",
	evOpen:          "open",
	evFrame:         "frame",
	evSocketError:   "socket_error",
	evSocketClose:   "socket_close",
	evRetry:         "retry",
}

func (k eventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

type event struct {
	kind eventKind

	gen   uint64 // socket generation
	token uint64 // retry timer token

	sock Socket
	data []byte
	text string
	err  error
	code int
	flag bool
	msg  model.Message
	done chan struct{}
}

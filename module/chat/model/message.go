package model

import "time"

// Sender identifies who produced a transcript entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one transcript entry. It is never modified once appended.
type Message struct {
	Sender    Sender     `json:"sender"`              // user | assistant
	Content   string     `json:"content"`             // display text
	Timestamp *time.Time `json:"timestamp,omitempty"` // nil for entries loaded without a time
}

func NewMessage(sender Sender, content string, at time.Time) Message {
	return Message{Sender: sender, Content: content, Timestamp: &at}
}

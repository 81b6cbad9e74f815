package natsx

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/transcript"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/ids"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event types, also sent as the Event-Type header.
const (
	EventState      = "state"
	EventSession    = "session"
	EventTranscript = "transcript"
)

// MsgPublisher is the slice of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Envelope is the JSON body of every published event.
type Envelope struct {
	Type      string             `json:"type"`
	At        time.Time          `json:"at"`
	State     *model.StateChange `json:"state,omitempty"`
	SessionID *int64             `json:"sessionId,omitempty"`
	Cleared   bool               `json:"cleared,omitempty"`
	Message   *model.Message     `json:"message,omitempty"`
}

// Publisher fans chat client changes out to <subject>.<type>. Its hooks are
// listeners for the manager, the session tracker and the transcript store.
// A NATS publish only buffers, so the hooks are safe on the manager goroutine.
type Publisher struct {
	conn    MsgPublisher
	subject string
	now     func() time.Time
	log     *zap.Logger
}

func NewPublisher(conn MsgPublisher, subject string, log *zap.Logger) *Publisher {
	if subject == "" {
		subject = "tuknavi.chat"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{conn: conn, subject: subject, now: time.Now, log: log}
}

func (p *Publisher) OnState(c model.StateChange) {
	p.publish(Envelope{Type: EventState, State: &c})
}

func (p *Publisher) OnSession(id int64, ok bool) {
	env := Envelope{Type: EventSession}
	if ok {
		env.SessionID = &id
	}
	p.publish(env)
}

func (p *Publisher) OnTranscript(ev transcript.Event) {
	env := Envelope{Type: EventTranscript, Cleared: ev.Cleared}
	if !ev.Cleared {
		msg := ev.Message
		env.Message = &msg
	}
	p.publish(env)
}

func (p *Publisher) publish(env Envelope) {
	env.At = p.now()
	data, err := json.Marshal(env)
	if err != nil {
		p.log.Warn("encode event failed", zap.String("type", env.Type), zap.Error(err))
		return
	}
	subject := p.subject + "." + env.Type
	msg := newMsg(subject, data, map[string]string{
		"Event-Type":  env.Type,
		"Nats-Msg-Id": strconv.FormatInt(ids.Generate(), 10),
	})
	if err := p.conn.PublishMsg(msg); err != nil {
		p.log.Warn("publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

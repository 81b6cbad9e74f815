package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/transcript"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/nats-io/nats.go"
)

type capture struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (c *capture) PublishMsg(m *nats.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return c.err
}

func decodeEnv(t *testing.T, m *nats.Msg) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		t.Fatalf("bad body %s: %v", m.Data, err)
	}
	return env
}

func TestPublisherSubjectsAndBodies(t *testing.T) {
	c := &capture{}
	p := NewPublisher(c, "t.chat", nil)

	p.OnState(model.StateChange{Old: model.StateConnecting, New: model.StateConnected})
	p.OnSession(42, true)
	p.OnSession(0, false)
	p.OnTranscript(transcript.Event{Message: model.Message{Sender: model.SenderAssistant, Content: "hi"}})
	p.OnTranscript(transcript.Event{Cleared: true})

	if len(c.msgs) != 5 {
		t.Fatalf("published %d", len(c.msgs))
	}
	wantSubj := []string{"t.chat.state", "t.chat.session", "t.chat.session", "t.chat.transcript", "t.chat.transcript"}
	for i, m := range c.msgs {
		if m.Subject != wantSubj[i] {
			t.Fatalf("msg %d subject %s", i, m.Subject)
		}
		if m.Header.Get("Nats-Msg-Id") == "" {
			t.Fatalf("msg %d has no id", i)
		}
	}
	if ids := [2]string{c.msgs[0].Header.Get("Nats-Msg-Id"), c.msgs[1].Header.Get("Nats-Msg-Id")}; ids[0] == ids[1] {
		t.Fatalf("ids repeat: %v", ids)
	}

	if env := decodeEnv(t, c.msgs[0]); env.State == nil || env.State.New != model.StateConnected {
		t.Fatalf("state env = %+v", env)
	}
	if !strings.Contains(string(c.msgs[0].Data), `"new":"connected"`) {
		t.Fatalf("state should be named: %s", c.msgs[0].Data)
	}
	if env := decodeEnv(t, c.msgs[1]); env.SessionID == nil || *env.SessionID != 42 {
		t.Fatalf("session env = %+v", env)
	}
	if env := decodeEnv(t, c.msgs[2]); env.SessionID != nil {
		t.Fatalf("cleared session carries id")
	}
	if env := decodeEnv(t, c.msgs[3]); env.Message == nil || env.Message.Content != "hi" {
		t.Fatalf("transcript env = %+v", env)
	}
	if env := decodeEnv(t, c.msgs[4]); !env.Cleared || env.Message != nil {
		t.Fatalf("clear env = %+v", env)
	}
}

func TestPublisherSurvivesErrors(t *testing.T) {
	c := &capture{err: errors.New("nats: connection closed")}
	p := NewPublisher(c, "", nil)
	p.OnState(model.StateChange{})
	if len(c.msgs) != 1 || c.msgs[0].Subject != "tuknavi.chat.state" {
		t.Fatalf("msgs = %v", c.msgs)
	}
}

type fakeCtrl struct {
	sent       []string
	reconnects int
	logouts    int
	foreground []bool
	clears     int
	sendErr    error
}

func (f *fakeCtrl) Send(text string) error { f.sent = append(f.sent, text); return f.sendErr }
func (f *fakeCtrl) Reconnect()             { f.reconnects++ }
func (f *fakeCtrl) Logout()                { f.logouts++ }
func (f *fakeCtrl) SetForeground(fg bool)  { f.foreground = append(f.foreground, fg) }
func (f *fakeCtrl) ClearMessages()         { f.clears++ }

func cmd(body string, id string) Message {
	m := Message{Subject: "tuknavi.chat.cmd", Data: []byte(body)}
	if id != "" {
		m.Header = map[string]string{"Nats-Msg-Id": id}
	}
	return m
}

func TestCommandsDispatch(t *testing.T) {
	f := &fakeCtrl{}
	c := NewCommands(f, "", nil)
	if c.Subject() != "tuknavi.chat.cmd" {
		t.Fatalf("subject = %s", c.Subject())
	}
	ctx := context.Background()

	for _, body := range []string{
		`{"op":"send","text":"hello"}`,
		`{"op":"reconnect"}`,
		`{"op":"foreground","foreground":true}`,
		`{"op":"background"}`,
		`{"op":"clear"}`,
		`{"op":"LOGOUT"}`,
	} {
		if err := c.handler(ctx, cmd(body, "")); err != nil {
			t.Fatalf("%s: %v", body, err)
		}
	}
	if len(f.sent) != 1 || f.sent[0] != "hello" || f.reconnects != 1 || f.logouts != 1 || f.clears != 1 {
		t.Fatalf("ctrl = %+v", f)
	}
	if len(f.foreground) != 2 || !f.foreground[0] || f.foreground[1] {
		t.Fatalf("foreground = %v", f.foreground)
	}

	if err := c.handler(ctx, cmd(`{"op":"dance"}`, "")); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("unknown op err = %v", err)
	}
	if err := c.handler(ctx, cmd(`not json`, "")); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("bad json err = %v", err)
	}
	f.sendErr = errs.ErrManagerClosed.Wrap()
	if err := c.handler(ctx, cmd(`{"op":"send","text":"x"}`, "")); !errors.Is(err, errs.ErrManagerClosed) {
		t.Fatalf("send err = %v", err)
	}
}

func TestCommandsDeduplicated(t *testing.T) {
	f := &fakeCtrl{}
	c := NewCommands(f, "x", nil, IdemMiddleware(NewMemIdem(time.Minute), 0))
	ctx := context.Background()

	_ = c.handler(ctx, cmd(`{"op":"send","text":"once"}`, "id-1"))
	_ = c.handler(ctx, cmd(`{"op":"send","text":"once"}`, "id-1"))
	_ = c.handler(ctx, cmd(`{"op":"send","text":"once"}`, "id-2"))
	if len(f.sent) != 2 {
		t.Fatalf("sent = %v", f.sent)
	}
}

func TestMemIdemExpiry(t *testing.T) {
	s := NewMemIdem(time.Minute).(*memIdem)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	if seen, _ := s.SeenOnce("k", 0); seen {
		t.Fatalf("first sight reported seen")
	}
	if seen, _ := s.SeenOnce("k", 0); !seen {
		t.Fatalf("second sight not seen")
	}
	now = now.Add(2 * time.Minute)
	if seen, _ := s.SeenOnce("k", 0); seen {
		t.Fatalf("expired key still seen")
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, m Message) error {
				order = append(order, name)
				return next(ctx, m)
			}
		}
	}
	h := Chain(func(context.Context, Message) error { order = append(order, "h"); return nil }, mw("a"), mw("b"))
	_ = h(context.Background(), Message{})
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "h" {
		t.Fatalf("order = %v", order)
	}
}

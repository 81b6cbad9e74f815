package natsx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Controller is what remote commands may drive; *chat.Manager satisfies it.
type Controller interface {
	Send(text string) error
	Reconnect()
	Logout()
	SetForeground(fg bool)
	ClearMessages()
}

// Command is the JSON body accepted on <subject>.cmd.
type Command struct {
	Op         string `json:"op"` // send | reconnect | logout | foreground | background | clear
	Text       string `json:"text,omitempty"`
	Foreground bool   `json:"foreground,omitempty"`
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Commands lets another process drive the chat client over NATS.
type Commands struct {
	ctrl    Controller
	subject string
	log     *zap.Logger
	handler Handler
	sub     *nats.Subscription
}

func NewCommands(ctrl Controller, subject string, log *zap.Logger, mws ...Middleware) *Commands {
	safe.MustNotNil(ctrl, "ctrl")
	if subject == "" {
		subject = "tuknavi.chat"
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Commands{ctrl: ctrl, subject: subject + ".cmd", log: log}
	c.handler = Chain(c.Handle, mws...)
	return c
}

func (c *Commands) Subject() string { return c.subject }

// Start subscribes on nc. Requests with a reply subject get {"ok":..}.
func (c *Commands) Start(nc *nats.Conn) error {
	sub, err := nc.Subscribe(c.subject, func(m *nats.Msg) {
		defer safe.Recover("nats-cmd")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := c.handler(ctx, fromNats(m))
		if m.Reply == "" {
			return
		}
		r := reply{OK: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		b, _ := json.Marshal(r)
		_ = m.Respond(b)
	})
	if err != nil {
		return errs.WrapMsg(err, "subscribe", "subject", c.subject)
	}
	c.sub = sub
	return nil
}

func (c *Commands) Stop() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}
}

// Handle applies one command.
func (c *Commands) Handle(_ context.Context, msg Message) error {
	var cmd Command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		return errs.ErrArgs.WrapMsg("bad command", "err", err)
	}
	c.log.Debug("remote command", zap.String("op", cmd.Op))

	switch strings.ToLower(cmd.Op) {
	case "send":
		return c.ctrl.Send(cmd.Text)
	case "reconnect":
		c.ctrl.Reconnect()
	case "logout":
		c.ctrl.Logout()
	case "foreground":
		c.ctrl.SetForeground(cmd.Foreground)
	case "background":
		c.ctrl.SetForeground(false)
	case "clear":
		c.ctrl.ClearMessages()
	default:
		return errs.ErrArgs.WrapMsg("unknown op", "op", cmd.Op)
	}
	return nil
}

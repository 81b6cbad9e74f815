// Package history loads earlier chat turns once the server names the session.
package history

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/decode"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const logsPath = "/chat/chatting-logs/{sessionId}"

// TokenSource supplies the bearer token for the REST call.
type TokenSource interface {
	BearerToken() string
}

// Appender receives the restored entry; *chat.Manager satisfies it.
type Appender interface {
	AddMessage(msg model.Message)
}

type Config struct {
	BaseURL string        // REST API root, e.g. http://localhost:3000
	Timeout time.Duration // per request
	Logger  *zap.Logger
}

func (c *Config) norm() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3000"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type Loader struct {
	client *resty.Client
	tokens TokenSource
	sink   Appender
	log    *zap.Logger

	// bumped on every session change; a fetch whose generation is no longer
	// current drops its result
	gen atomic.Uint64
}

func NewLoader(conf Config, tokens TokenSource, sink Appender) *Loader {
	safe.MustNotNil(tokens, "tokens")
	safe.MustNotNil(sink, "sink")
	conf.norm()
	return &Loader{
		client: resty.New().
			SetBaseURL(conf.BaseURL).
			SetTimeout(conf.Timeout).
			SetHeader("Content-Type", "application/json"),
		tokens: tokens,
		sink:   sink,
		log:    conf.Logger,
	}
}

// entry accepts the field spellings the API has used for a chat turn.
type entry struct {
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	CreatedAt string `json:"createdAt"`
}

func (e *entry) toMessage() model.Message {
	msg := model.Message{Sender: model.SenderAssistant, Content: e.Content}
	if msg.Content == "" {
		msg.Content = e.Message
	}
	switch strings.ToLower(firstNonEmpty(e.Sender, e.Role)) {
	case "user", "human":
		msg.Sender = model.SenderUser
	}
	if ts := firstNonEmpty(e.Timestamp, e.CreatedAt); ts != "" {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			msg.Timestamp = &at
		}
	}
	return msg
}

// Fetch returns the whole history of a session, oldest first.
func (l *Loader) Fetch(ctx context.Context, sessionID int64) ([]model.Message, error) {
	req := l.client.R().
		SetContext(ctx).
		SetPathParam("sessionId", strconv.FormatInt(sessionID, 10))
	if tok := l.tokens.BearerToken(); tok != "" {
		req.SetAuthToken(tok)
	}

	resp, err := req.Get(logsPath)
	if err != nil {
		return nil, errs.ErrHistoryFetch.WrapMsg("request failed", "session_id", sessionID, "err", err)
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, errs.ErrTokenExpired.WrapMsg("history rejected the token", "session_id", sessionID)
	case resp.IsError():
		return nil, errs.ErrHistoryFetch.WrapMsg("unexpected status", "session_id", sessionID, "status", resp.StatusCode())
	}
	return parseEntries(resp.Body())
}

// parseEntries takes a bare array or one wrapped in {"data": [...]}.
func parseEntries(body []byte) ([]model.Message, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.ErrHistoryFetch.WrapMsg("bad body", "err", err)
	}
	if obj, ok := raw.(map[string]any); ok {
		raw = obj["data"]
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, nil
	}

	out := make([]model.Message, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e, err := decode.DecodeMap[entry](m)
		if err != nil {
			continue
		}
		out = append(out, e.toMessage())
	}
	return out, nil
}

// OnSession is a session.Listener: when a session is named it restores the
// latest turn of that session into the transcript.
func (l *Loader) OnSession(id int64, ok bool) {
	gen := l.gen.Add(1)
	if !ok {
		return
	}
	safe.Go("history-load", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		l.restore(ctx, gen, id)
	})
}

func (l *Loader) restore(ctx context.Context, gen uint64, id int64) {
	log := l.log.With(zap.Int64("session_id", id))
	msgs, err := l.Fetch(ctx, id)
	if err != nil {
		log.Warn("history load failed", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		log.Debug("no history")
		return
	}
	if l.gen.Load() != gen {
		log.Debug("session changed during load, result dropped")
		return
	}
	l.sink.AddMessage(msgs[len(msgs)-1])
	log.Info("history restored", zap.Int("entries", len(msgs)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

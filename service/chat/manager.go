package chat

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/inbound"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/outbound"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/session"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/transcript"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/security"
	"go.uber.org/zap"
)

// StateListener runs on the manager goroutine and must not block.
type StateListener func(model.StateChange)

// Manager owns the single chat socket. Every public method posts an event
// and returns; one goroutine applies the events in order, so the fields in
// the "loop owned" block below are never touched anywhere else.
type Manager struct {
	conf   ManagerConf
	auth   AuthContext
	dialer Dialer
	log    *zap.Logger

	decoder    *inbound.Decoder
	transcript *transcript.Store
	queue      *outbound.Queue
	session    *session.Tracker

	box    *mailbox
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}
	closed atomic.Bool
	state  atomic.Int32

	lmu       sync.Mutex
	nextLID   int
	listeners map[int]StateListener

	// loop owned
	sock       Socket
	gen        uint64
	attempts   int
	retry      Timer
	retryToken uint64
}

func NewManager(conf ManagerConf, auth AuthContext, dialer Dialer) *Manager {
	safe.MustNotNil(auth, "auth")
	safe.MustNotNil(dialer, "dialer")
	conf.norm()

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		conf:       conf,
		auth:       auth,
		dialer:     dialer,
		log:        conf.Logger,
		decoder:    inbound.NewDecoder(conf.Logger.Named("decoder")),
		transcript: transcript.NewStore(),
		queue:      outbound.NewQueue(),
		session:    session.NewTracker(),
		box:        newMailbox(),
		ctx:        ctx,
		cancel:     cancel,
		exited:     make(chan struct{}),
		listeners:  make(map[int]StateListener),
	}
	m.state.Store(int32(model.StateDisconnected))
	go m.loop()
	return m
}

// ===== public API =====

func (m *Manager) Connect() { m.post(event{kind: evConnect}) }

// Send echoes text into the transcript and transmits it, or queues it until
// the next successful open. Blank text is ignored.
func (m *Manager) Send(text string) error {
	if !m.post(event{kind: evSend, text: text}) {
		return errs.ErrManagerClosed.Wrap()
	}
	return nil
}

// Reconnect resets the retry budget and forces a fresh socket.
func (m *Manager) Reconnect() { m.post(event{kind: evReconnect}) }

func (m *Manager) Logout() { m.post(event{kind: evLogout}) }

// AuthChanged must be called whenever the auth context flips.
func (m *Manager) AuthChanged() { m.post(event{kind: evAuthChanged}) }

func (m *Manager) SetForeground(fg bool) { m.post(event{kind: evForeground, flag: fg}) }

// AddMessage appends an entry produced outside the socket, e.g. history.
func (m *Manager) AddMessage(msg model.Message) { m.post(event{kind: evAddMessage, msg: msg}) }

func (m *Manager) ClearMessages() { m.post(event{kind: evClearMessages}) }

// Close tears the manager down and waits for its goroutine to exit.
// Listeners run on that goroutine, so they must call Shutdown instead.
func (m *Manager) Close() {
	m.Shutdown()
	<-m.exited
}

// Shutdown starts the teardown without waiting for it. Done is closed once
// it has finished.
func (m *Manager) Shutdown() {
	if m.closed.CompareAndSwap(false, true) {
		m.box.post(event{kind: evShutdown})
	}
}

func (m *Manager) Done() <-chan struct{} { return m.exited }

func (m *Manager) State() model.ConnectionState { return model.ConnectionState(m.state.Load()) }

func (m *Manager) IsConnected() bool { return m.State() == model.StateConnected }

func (m *Manager) SessionID() (int64, bool) { return m.session.Current() }

func (m *Manager) Messages() []model.Message { return m.transcript.Messages() }

// Pending lists queued outbound text, head first.
func (m *Manager) Pending() []string { return m.queue.Snapshot() }

func (m *Manager) SubscribeState(fn StateListener) (cancel func()) {
	m.lmu.Lock()
	id := m.nextLID
	m.nextLID++
	m.listeners[id] = fn
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

func (m *Manager) SubscribeTranscript(fn transcript.Listener) (cancel func()) {
	return m.transcript.Subscribe(fn)
}

func (m *Manager) SubscribeSession(fn session.Listener) (cancel func()) {
	return m.session.Subscribe(fn)
}

func (m *Manager) post(ev event) bool {
	if m.closed.Load() {
		return false
	}
	return m.box.post(ev)
}

// sync waits until every event posted before it has been applied.
func (m *Manager) sync() {
	done := make(chan struct{})
	if !m.post(event{kind: evBarrier, done: done}) {
		return
	}
	select {
	case <-done:
	case <-m.exited:
	}
}

// ===== loop =====

func (m *Manager) loop() {
	defer close(m.exited)
	defer safe.Recover("chat-manager")

	for range m.box.signal {
		for _, ev := range m.box.take() {
			if !m.handle(ev) {
				return
			}
		}
	}
}

func (m *Manager) handle(ev event) bool {
	switch ev.kind {
	case evConnect:
		m.connect()
	case evReconnect:
		m.attempts = 0
		m.cancelRetry()
		m.connect()
	case evSend:
		m.send(ev.text)
	case evLogout:
		m.teardown()
	case evAuthChanged:
		m.authChanged()
	case evForeground:
		m.setForeground(ev.flag)
	case evAddMessage:
		m.transcript.Append(ev.msg)
	case evClearMessages:
		m.transcript.Clear()
	case evBarrier:
		close(ev.done)
	case evShutdown:
		m.teardown()
		m.cancel()
		m.box.close()
		m.log.Info("chat manager stopped")
		return false

	case evOpen:
		m.onOpen(ev)
	case evFrame:
		m.onFrame(ev)
	case evSocketError:
		m.onError(ev)
	case evSocketClose:
		m.onClose(ev)
	case evRetry:
		m.onRetry(ev)
	}
	return true
}

func (m *Manager) connect() {
	if !m.auth.IsAuthenticated() {
		m.log.Debug("connect skipped, not authenticated")
		return
	}
	m.cancelRetry()
	m.dropSocket()
	gen := m.gen
	m.setState(model.StateConnecting)

	endpoint := m.endpoint()
	m.log.Info("dialing", zap.String("url", redact(endpoint)), zap.Int("attempt", m.attempts))
	safe.Go("chat-dial", func() { m.dial(gen, endpoint) })
}

func (m *Manager) dial(gen uint64, endpoint string) {
	ctx, cancel := context.WithTimeout(m.ctx, m.conf.DialTimeout)
	defer cancel()

	sock, err := m.dialer.Dial(ctx, endpoint)
	if err != nil {
		m.post(event{kind: evSocketError, gen: gen, err: err})
		m.post(event{kind: evSocketClose, gen: gen, err: err})
		return
	}
	if !m.post(event{kind: evOpen, gen: gen, sock: sock}) {
		_ = sock.Close()
		return
	}
	sock.Start(Sink{
		OnMessage: func(data []byte) { m.post(event{kind: evFrame, gen: gen, data: data}) },
		OnError:   func(err error) { m.post(event{kind: evSocketError, gen: gen, err: err}) },
		OnClose: func(code int, reason string) {
			m.post(event{kind: evSocketClose, gen: gen, code: code, text: reason})
		},
	})
}

// endpoint is <base>/ws with the bearer token as a query parameter.
func (m *Manager) endpoint() string {
	u := strings.TrimRight(m.conf.BaseURL, "/") + "/ws"
	if token := m.auth.BearerToken(); token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (m *Manager) onOpen(ev event) {
	if ev.gen != m.gen {
		_ = ev.sock.Close()
		return
	}
	m.sock = ev.sock
	m.attempts = 0
	m.log.Info("socket open", zap.String("conn_id", ev.sock.ID()))
	m.setState(model.StateConnected)
	m.drain()
}

func (m *Manager) onFrame(ev event) {
	if ev.gen != m.gen || m.sock == nil {
		return
	}
	res := m.decoder.Decode(ev.data)
	switch res.Kind {
	case inbound.KindSession:
		if m.session.Set(res.SessionID) {
			m.log.Info("session assigned", zap.Int64("session_id", res.SessionID))
		}
	default:
		m.transcript.Append(model.NewMessage(res.Sender, res.Content, m.conf.Clock()))
	}
}

func (m *Manager) onError(ev event) {
	if ev.gen != m.gen {
		return
	}
	m.log.Warn("socket error", zap.Error(ev.err))
	m.setState(model.StateError)
}

func (m *Manager) onClose(ev event) {
	if ev.gen != m.gen {
		return
	}
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
	m.log.Info("socket closed", zap.Int("code", ev.code), zap.String("reason", ev.text))
	m.setState(model.StateDisconnected)
	m.scheduleRetry()
}

func (m *Manager) scheduleRetry() {
	if !m.auth.IsAuthenticated() {
		return
	}
	if m.attempts >= m.conf.MaxReconnectAttempts {
		m.log.Warn("reconnect attempts exhausted", zap.Int("attempt", m.attempts))
		return
	}
	delay := Backoff(m.attempts, m.conf.BaseDelay, m.conf.MaxDelay)
	m.attempts++
	m.cancelRetry()
	token := m.retryToken
	m.retry = m.conf.AfterFunc(delay, func() { m.post(event{kind: evRetry, token: token}) })
	m.log.Info("reconnect scheduled", zap.Int("attempt", m.attempts), zap.Duration("delay", delay))
}

func (m *Manager) onRetry(ev event) {
	if m.retry == nil || ev.token != m.retryToken {
		return
	}
	m.retry = nil
	m.connect()
}

// cancelRetry stops the pending timer and invalidates an event it may
// already have posted.
func (m *Manager) cancelRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.retryToken++
}

// dropSocket closes the current socket and makes every event still in
// flight for it stale.
func (m *Manager) dropSocket() {
	if m.sock != nil {
		_ = m.sock.Close()
		m.sock = nil
	}
	m.gen++
}

func (m *Manager) send(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m.transcript.Append(model.NewMessage(model.SenderUser, text, m.conf.Clock()))

	if m.ready() {
		if m.queue.Len() == 0 {
			if err := m.sock.Send(text); err != nil {
				m.queue.Enqueue(text)
				m.sendFailed(err)
			}
			return
		}
		m.queue.Enqueue(text)
		m.drain()
		return
	}

	m.queue.Enqueue(text)
	if m.State() != model.StateConnecting {
		m.connect()
	}
}

func (m *Manager) ready() bool {
	return m.sock != nil && m.State() == model.StateConnected
}

func (m *Manager) drain() {
	if !m.ready() {
		return
	}
	sock := m.sock
	sent, err := m.queue.Drain(m.ready, sock.Send)
	if sent > 0 {
		m.log.Debug("queue flushed", zap.Int("sent", sent), zap.Int("left", m.queue.Len()))
	}
	if err != nil {
		m.sendFailed(err)
	}
}

// sendFailed closes a socket that refused a write. Its read side then
// reports close, which goes through the usual retry path.
func (m *Manager) sendFailed(err error) {
	m.log.Warn("send failed, text kept in queue", zap.Error(err), zap.Int("queued", m.queue.Len()))
	if m.sock != nil {
		_ = m.sock.Close()
	}
}

func (m *Manager) authChanged() {
	if !m.auth.IsAuthenticated() {
		m.teardown()
		return
	}
	switch m.State() {
	case model.StateConnected, model.StateConnecting:
	default:
		m.connect()
	}
}

func (m *Manager) setForeground(fg bool) {
	if !fg || !m.auth.IsAuthenticated() {
		return
	}
	switch m.State() {
	case model.StateConnected, model.StateConnecting:
	default:
		m.log.Debug("foreground regained, reconnecting")
		m.connect()
	}
}

// teardown is logout: no socket, no timer, nothing remembered.
func (m *Manager) teardown() {
	m.cancelRetry()
	m.dropSocket()
	m.attempts = 0
	m.queue.Clear()
	m.transcript.Clear()
	m.session.Clear()
	m.setState(model.StateDisconnected)
}

func (m *Manager) setState(s model.ConnectionState) {
	old := model.ConnectionState(m.state.Swap(int32(s)))
	if old == s {
		return
	}
	m.log.Debug("state changed", zap.Stringer("from", old), zap.Stringer("state", s))

	m.lmu.Lock()
	fns := make([]StateListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.Unlock()

	change := model.StateChange{Old: old, New: s}
	for _, fn := range fns {
		fn(change)
	}
}

// redact swaps the token in endpoint for its hash, enough to tell tokens
// apart in logs.
func redact(endpoint string) string {
	i := strings.Index(endpoint, "?token=")
	if i < 0 {
		return endpoint
	}
	tok, err := url.QueryUnescape(endpoint[i+len("?token="):])
	if err != nil {
		tok = endpoint[i+len("?token="):]
	}
	return endpoint[:i] + "?token=" + security.HashToken(tok)
}

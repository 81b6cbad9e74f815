package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/ids"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type DialerConf struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration // deadline for one frame write
	PongWait         time.Duration // read deadline, pushed forward by each pong; 0 disables
	PingInterval     time.Duration // 0 disables keepalive pings
	ReadLimit        int64
	Header           http.Header
	Logger           *zap.Logger
}

func (c *DialerConf) norm() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PingInterval > 0 && c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 12 / 5
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// WSDialer dials text-frame WebSocket connections with gorilla/websocket.
type WSDialer struct {
	conf DialerConf
	d    *websocket.Dialer
}

func NewWSDialer(conf DialerConf) *WSDialer {
	conf.norm()
	return &WSDialer{
		conf: conf,
		d: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: conf.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

func (w *WSDialer) Dial(ctx context.Context, url string) (Socket, error) {
	conn, resp, err := w.d.DialContext(ctx, url, w.conf.Header)
	if err != nil {
		if resp != nil {
			return nil, errs.WrapMsg(err, "websocket handshake failed", "status", resp.StatusCode)
		}
		return nil, errs.WrapMsg(err, "websocket dial failed")
	}
	s := &wsSocket{
		id:   ids.GenerateString(),
		conn: conn,
		conf: w.conf,
		done: make(chan struct{}),
	}
	s.log = w.conf.Logger.With(zap.String("conn_id", s.id))
	s.log.Debug("socket dialed", zap.String("remote", conn.RemoteAddr().String()))
	return s, nil
}

type wsSocket struct {
	id   string
	conn *websocket.Conn
	conf DialerConf
	log  *zap.Logger

	writeMu   sync.Mutex // gorilla allows one concurrent writer
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func (s *wsSocket) ID() string { return s.id }

func (s *wsSocket) Start(sink Sink) {
	s.startOnce.Do(func() {
		safe.Go("ws-read-"+s.id, func() { s.readPump(sink) })
		if s.conf.PingInterval > 0 {
			safe.Go("ws-ping-"+s.id, s.pingPump)
		}
	})
}

func (s *wsSocket) Send(text string) error {
	select {
	case <-s.done:
		return errs.ErrNotConnected.WrapMsg("socket closed", "conn_id", s.id)
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return errs.WrapMsg(err, "websocket write failed", "conn_id", s.id)
	}
	return nil
}

func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.conf.WriteWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *wsSocket) readPump(sink Sink) {
	s.conn.SetReadLimit(s.conf.ReadLimit)
	if s.conf.PongWait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.conf.PongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.conf.PongWait))
		})
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.reportEnd(sink, err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		sink.OnMessage(data)
	}
}

// reportEnd turns a read failure into close, preceded by error unless the
// peer closed cleanly.
func (s *wsSocket) reportEnd(sink Sink, err error) {
	code := websocket.CloseAbnormalClosure
	reason := err.Error()

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code, reason = ce.Code, ce.Text
	}
	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)

	select {
	case <-s.done:
		// closed from our side
		clean = true
	default:
	}

	if clean {
		s.log.Debug("socket closed", zap.Int("code", code), zap.String("reason", reason))
	} else {
		s.log.Info("socket read failed", zap.Error(err))
		sink.OnError(err)
	}
	_ = s.Close()
	sink.OnClose(code, reason)
}

func (s *wsSocket) pingPump() {
	ticker := time.NewTicker(s.conf.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.conf.WriteWait))
			s.writeMu.Unlock()
			if err != nil {
				// the read side notices the dead peer through the pong deadline
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

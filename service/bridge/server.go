// Package bridge exposes the chat client to a local UI process over HTTP.
package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	mid "github.com/TUK-curriculum/frontend-tuk-navi/middleware"
	midsec "github.com/TUK-curriculum/frontend-tuk-navi/middleware/security"
	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/safe"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/specialerror"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Client is the chat surface the bridge drives; *chat.Manager satisfies it.
type Client interface {
	State() model.ConnectionState
	SessionID() (int64, bool)
	Messages() []model.Message
	Pending() []string

	Send(text string) error
	Reconnect()
	Logout()
	SetForeground(fg bool)
	ClearMessages()
}

// Archive reads what the recorder stored; optional.
type Archive interface {
	Transcript(ctx context.Context, user string) ([]model.Message, error)
}

type Config struct {
	Addr    string   // listen address, default 127.0.0.1:8090
	Token   string   // required on mutating routes when set
	Origins []string // allowed browser origins, empty allows all
	Logger  *zap.Logger
}

func (c *Config) norm() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8090"
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

type Server struct {
	conf    Config
	client  Client
	archive Archive
	user    func() string
	engine  *gin.Engine
	srv     *http.Server
	log     *zap.Logger
}

type Option func(*Server)

// WithArchive serves GET /archive from a, for the user named by user().
func WithArchive(a Archive, user func() string) Option {
	return func(s *Server) {
		s.archive = a
		s.user = user
	}
}

func NewServer(conf Config, client Client, opts ...Option) *Server {
	safe.MustNotNil(client, "client")
	conf.norm()
	s := &Server{conf: conf, client: client, log: conf.Logger}
	for _, o := range opts {
		o(s)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mid.AccessLog(s.log))
	mids := mid.NewManager()
	mids.Add(mid.Origin(s.conf.Origins...))
	r.Use(mids.Use())

	auth := mid.RouteOpt{IsAuth: true, Auth: &midsec.Options{
		HeaderToken:               midsec.DefaultOptions().HeaderToken,
		EnableAuthorizationBearer: true,
		Token:                     s.conf.Token,
	}}
	open := mid.RouteOpt{}

	mid.GET(r, "/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") }, open)
	mid.GET(r, "/state", s.handleState, auth)
	mid.GET(r, "/transcript", s.handleTranscript, auth)
	mid.DELETE(r, "/transcript", s.handleClear, auth)
	mid.GET(r, "/archive", s.handleArchive, auth)
	mid.POST(r, "/send", s.handleSend, auth)
	mid.POST(r, "/reconnect", s.handleReconnect, auth)
	mid.POST(r, "/logout", s.handleLogout, auth)
	mid.POST(r, "/foreground", s.handleForeground, auth)
	return r
}

func (s *Server) Handler() http.Handler { return s.engine }

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return errs.WrapMsg(err, "bridge listen", "addr", s.conf.Addr)
	}
	s.srv = &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	s.log.Info("bridge listening", zap.String("addr", ln.Addr().String()))
	safe.Go("bridge-http", func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("bridge stopped", zap.Error(err))
		}
	})
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ===== handlers =====

type stateResp struct {
	State     model.ConnectionState `json:"state"`
	Connected bool                  `json:"connected"`
	SessionID *int64                `json:"sessionId"`
	Pending   int                   `json:"pending"`
}

func (s *Server) handleState(c *gin.Context) {
	st := s.client.State()
	resp := stateResp{
		State:     st,
		Connected: st == model.StateConnected,
		Pending:   len(s.client.Pending()),
	}
	if id, ok := s.client.SessionID(); ok {
		resp.SessionID = &id
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTranscript(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": s.client.Messages()})
}

func (s *Server) handleArchive(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusNotFound, errs.ErrArgs.WithDetail("archive disabled"))
		return
	}
	user := c.Query("user")
	if user == "" && s.user != nil {
		user = s.user()
	}
	if user == "" {
		user = "anonymous"
	}
	msgs, err := s.archive.Transcript(c.Request.Context(), user)
	if err != nil {
		s.log.Warn("archive read failed", zap.Error(err))
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "messages": msgs})
}

type sendReq struct {
	Text string `json:"text"`
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("body must be {\"text\": string}"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(c, errs.ErrArgs.WithDetail("text is blank"))
		return
	}
	if err := s.client.Send(req.Text); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": s.client.State() != model.StateConnected})
}

func (s *Server) handleReconnect(c *gin.Context) {
	s.client.Reconnect()
	c.Status(http.StatusAccepted)
}

func (s *Server) handleLogout(c *gin.Context) {
	s.client.Logout()
	c.Status(http.StatusAccepted)
}

func (s *Server) handleClear(c *gin.Context) {
	s.client.ClearMessages()
	c.Status(http.StatusAccepted)
}

type foregroundReq struct {
	Foreground *bool `json:"foreground"`
}

func (s *Server) handleForeground(c *gin.Context) {
	var req foregroundReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Foreground == nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("body must be {\"foreground\": bool}"))
		return
	}
	s.client.SetForeground(*req.Foreground)
	c.Status(http.StatusAccepted)
}

func (s *Server) fail(c *gin.Context, err error) {
	ce := specialerror.ErrCode(err)
	c.JSON(specialerror.HTTPStatus(ce), ce)
}

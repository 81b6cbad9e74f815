package global

import (
	"errors"
	"io/fs"

	"github.com/TUK-curriculum/frontend-tuk-navi/logger"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/bridge"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/chat"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/history"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/natsx"
	"github.com/TUK-curriculum/frontend-tuk-navi/service/storage"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/ids"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Load reads the given dotenv files (".env" when none are named; missing
// files are skipped) and then parses the environment. Variables already set
// in the environment win over the files.
func Load(dotenv ...string) (*AppConfig, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.WrapMsg(err, "load dotenv", "file", f)
		}
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errs.ErrArgs.WrapMsg("parse env", "err", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch {
	case c.MaxReconnect < 0:
		return errs.ErrArgs.WrapMsg("CHAT_MAX_RECONNECT must not be negative", "value", c.MaxReconnect)
	case c.BaseDelay > c.MaxDelay:
		return errs.ErrArgs.WrapMsg("CHAT_BASE_DELAY exceeds CHAT_MAX_DELAY", "base", c.BaseDelay, "max", c.MaxDelay)
	case c.NodeID < 0 || c.NodeID > 1023:
		return errs.ErrArgs.WrapMsg("NODE_ID out of range 0..1023", "value", c.NodeID)
	}
	return nil
}

// ConfigAll applies the process wide settings.
func ConfigAll(c *AppConfig) {
	ids.SetNodeID(c.NodeID)
	logger.SetLevel(c.LogLevel)
}

func (c *AppConfig) ManagerConf() chat.ManagerConf {
	return chat.ManagerConf{
		BaseURL:              c.ChatBaseURL,
		MaxReconnectAttempts: c.MaxReconnect,
		BaseDelay:            c.BaseDelay,
		MaxDelay:             c.MaxDelay,
		DialTimeout:          c.DialTimeout,
		Logger:               logger.Named("chat"),
	}
}

func (c *AppConfig) DialerConf() chat.DialerConf {
	return chat.DialerConf{
		HandshakeTimeout: c.DialTimeout,
		WriteWait:        c.WriteWait,
		PongWait:         c.PongWait,
		PingInterval:     c.PingInterval,
		Logger:           logger.Named("ws"),
	}
}

func (c *AppConfig) HistoryConf() history.Config {
	return history.Config{BaseURL: c.APIBaseURL, Logger: logger.Named("history")}
}

func (c *AppConfig) RedisConf() storage.Config {
	return storage.Config{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *AppConfig) NATSConf() natsx.Config {
	return natsx.Config{
		Servers:  c.NATSServers,
		User:     c.NATSUser,
		Password: c.NATSPassword,
		Logger:   logger.Named("nats"),
	}
}

func (c *AppConfig) BridgeConf() bridge.Config {
	return bridge.Config{
		Addr:    c.BridgeAddr,
		Token:   c.BridgeToken,
		Origins: c.BridgeOrigins,
		Logger:  logger.Named("bridge"),
	}
}

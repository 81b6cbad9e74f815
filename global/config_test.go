package global

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TUK-curriculum/frontend-tuk-navi/tools/errs"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChatBaseURL != "ws://localhost:8000" || cfg.APIBaseURL != "http://localhost:3000" {
		t.Fatalf("urls = %s %s", cfg.ChatBaseURL, cfg.APIBaseURL)
	}
	if cfg.MaxReconnect != 5 || cfg.BaseDelay != time.Second || cfg.MaxDelay != 30*time.Second {
		t.Fatalf("backoff = %d %v %v", cfg.MaxReconnect, cfg.BaseDelay, cfg.MaxDelay)
	}
	if cfg.BridgeAddr != "127.0.0.1:8090" || cfg.NATSSubject != "tuknavi.chat" {
		t.Fatalf("bridge=%s subject=%s", cfg.BridgeAddr, cfg.NATSSubject)
	}

	mc := cfg.ManagerConf()
	if mc.BaseURL != cfg.ChatBaseURL || mc.MaxReconnectAttempts != 5 || mc.Logger == nil {
		t.Fatalf("manager conf = %+v", mc)
	}
	if dc := cfg.DialerConf(); dc.PingInterval != 25*time.Second || dc.PongWait != time.Minute {
		t.Fatalf("dialer conf = %+v", dc)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHAT_BASE_URL", "wss://chat.example")
	t.Setenv("CHAT_MAX_RECONNECT", "3")
	t.Setenv("CHAT_BASE_DELAY", "250ms")
	t.Setenv("NATS_SERVERS", "nats://a:4222,nats://b:4222")
	t.Setenv("BRIDGE_ORIGINS", "http://localhost:5173")

	cfg, err := Load(filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChatBaseURL != "wss://chat.example" || cfg.MaxReconnect != 3 || cfg.BaseDelay != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.NATSServers) != 2 || cfg.NATSServers[1] != "nats://b:4222" {
		t.Fatalf("servers = %v", cfg.NATSServers)
	}
	if nc := cfg.NATSConf(); len(nc.Servers) != 2 {
		t.Fatalf("nats conf = %+v", nc)
	}
	if bc := cfg.BridgeConf(); len(bc.Origins) != 1 {
		t.Fatalf("bridge conf = %+v", bc)
	}
}

func TestLoadDotenv(t *testing.T) {
	_ = os.Unsetenv("ACCESS_TOKEN")
	t.Cleanup(func() { _ = os.Unsetenv("ACCESS_TOKEN") })

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ACCESS_TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessToken != "from-file" {
		t.Fatalf("token = %q", cfg.AccessToken)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"CHAT_MAX_RECONNECT": "-1",
		"CHAT_BASE_DELAY":    "1m",
		"NODE_ID":            "5000",
		"CHAT_MAX_DELAY":     "soon",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load(filepath.Join(t.TempDir(), "none"))
			if !errors.Is(err, errs.ErrArgs) {
				t.Fatalf("%s=%s err = %v", k, v, err)
			}
		})
	}
}

func TestZeroReconnectDisablesRetries(t *testing.T) {
	t.Setenv("CHAT_MAX_RECONNECT", "0")
	cfg, err := Load(filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if mc := cfg.ManagerConf(); mc.MaxReconnectAttempts != 0 {
		t.Fatalf("max reconnect = %d", mc.MaxReconnectAttempts)
	}
}

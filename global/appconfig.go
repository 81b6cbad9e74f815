package global

import "time"

// AppConfig is everything the chat client reads from the environment.
type AppConfig struct {
	// chat socket
	ChatBaseURL  string        `env:"CHAT_BASE_URL" envDefault:"ws://localhost:8000"`
	MaxReconnect int           `env:"CHAT_MAX_RECONNECT" envDefault:"5"`
	BaseDelay    time.Duration `env:"CHAT_BASE_DELAY" envDefault:"1s"`
	MaxDelay     time.Duration `env:"CHAT_MAX_DELAY" envDefault:"30s"`
	DialTimeout  time.Duration `env:"CHAT_DIAL_TIMEOUT" envDefault:"10s"`
	PingInterval time.Duration `env:"CHAT_PING_INTERVAL" envDefault:"25s"`
	WriteWait    time.Duration `env:"CHAT_WRITE_WAIT" envDefault:"10s"`
	PongWait     time.Duration `env:"CHAT_PONG_WAIT" envDefault:"60s"`

	// REST API, used for history
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:3000"`

	// credential handed over by the login flow
	AccessToken string `env:"ACCESS_TOKEN"`
	JWTSecret   string `env:"JWT_SECRET"`

	// optional transcript recorder
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// optional event fan-out and remote commands
	NATSServers  []string `env:"NATS_SERVERS" envSeparator:","`
	NATSSubject  string   `env:"NATS_SUBJECT" envDefault:"tuknavi.chat"`
	NATSUser     string   `env:"NATS_USER"`
	NATSPassword string   `env:"NATS_PASSWORD"`

	// local HTTP bridge for the UI
	BridgeAddr    string   `env:"BRIDGE_ADDR" envDefault:"127.0.0.1:8090"`
	BridgeToken   string   `env:"BRIDGE_TOKEN"`
	BridgeOrigins []string `env:"BRIDGE_ORIGINS" envSeparator:","`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	NodeID   int64  `env:"NODE_ID" envDefault:"1"`
}

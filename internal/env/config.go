package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Addr is the host:port the telnet listener binds.
	Addr string `env:"CHARON_ADDR,default=:4000"`

	// Reuseport sets SO_REUSEPORT on the listener.
	Reuseport bool `env:"CHARON_REUSEPORT"`

	// Tick is the batching window for inbound events.
	Tick time.Duration `env:"CHARON_TICK,default=100ms"`

	// IdleWindow is how long the writer idles before sending a keepalive.
	IdleWindow time.Duration `env:"CHARON_IDLE_WINDOW,default=5s"`

	// HandshakeTimeout bounds option negotiation; zero waits forever.
	HandshakeTimeout time.Duration `env:"CHARON_HANDSHAKE_TIMEOUT"`

	LogLevel string `env:"CHARON_LOG_LEVEL,default=info"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment configuration values for the client.
// Values are read from the environment, optionally seeded from a .env file.
type Config struct {
	// ServerURL is the chat backend's HTTP origin, used for the login
	// endpoint and for resolving relative file URLs
	ServerURL string `env:"CHATSYNC_SERVER_URL" envDefault:"http://localhost:6007"`

	// WebSocketURL is the realtime endpoint the session dials
	WebSocketURL string `env:"CHATSYNC_WS_URL" envDefault:"ws://localhost:6007/ws"`

	// Token is a pre-issued bearer token. When empty, the client logs
	// in with Username/Password to obtain one.
	Token    string `env:"CHATSYNC_TOKEN"`
	Username string `env:"CHATSYNC_USERNAME"`
	Password string `env:"CHATSYNC_PASSWORD"`

	// ReconnectAttempts bounds automatic reconnection after an
	// unexpected close; ReconnectDelay spaces the attempts.
	ReconnectAttempts int           `env:"CHATSYNC_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"CHATSYNC_RECONNECT_DELAY" envDefault:"3s"`
}

// ServerConfig holds environment configuration for the development server.
type ServerConfig struct {
	// Port is the port the HTTP server listens on
	Port string `env:"PORT" envDefault:"6007"`

	// CORSOrigins is the comma-separated list of allowed browser origins
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
}

// Load reads client configuration from the environment. A .env file is
// loaded first if present; missing it is not an error since production
// deployments set real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadServer reads development-server configuration from the environment.
func LoadServer() (*ServerConfig, error) {
	_ = godotenv.Load()

	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

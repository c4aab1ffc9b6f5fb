// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Env            string   `env:"CHAT_ENV" envDefault:"development"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	Postgres      Postgres

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	ContactEventsQueue string `env:"CONTACT_EVENTS_QUEUE" envDefault:"mychat_contact_events"`

	NotifierBatchSize     int           `env:"NOTIFIER_BATCH_SIZE" envDefault:"20"`
	NotifierFlushInterval time.Duration `env:"NOTIFIER_FLUSH_INTERVAL" envDefault:"500ms"`

	// TokenExpire is "never", "0", empty, or a time.ParseDuration string.
	TokenExpire string `env:"TOKEN_EXPIRE_TIME"`
	// Raw ed25519 key files. When unset a key pair is generated per process.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	AvatarRoot     string        `env:"AVATAR_ROOT" envDefault:"wwwroot"`
	ChatReplyDelay time.Duration `env:"CHAT_REPLY_DELAY" envDefault:"500ms"`
}

type Postgres struct {
	URL      string `env:"DATABASE_URL"`
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE"`
}

// ConnString returns DATABASE_URL when set, otherwise a URL assembled from the
// individual PG_* variables.
func (p Postgres) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Host + ":" + p.Port,
		Path:   "/" + p.Database,
	}
	return u.String()
}

// Load parses the environment into a Config and checks the values that
// cannot be expressed as tags.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	if c.ChatReplyDelay < 0 || c.ChatReplyDelay > 10*time.Second {
		return fmt.Errorf("CHAT_REPLY_DELAY out of range: %s", c.ChatReplyDelay)
	}
	return nil
}

// TokenTTL returns the session lifetime; zero means tokens never expire.
func (c *Config) TokenTTL() (time.Duration, error) {
	switch strings.TrimSpace(c.TokenExpire) {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpire)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

func (c *Config) Production() bool { return c.Env == "production" }

// Origins returns the CORS origins to allow. Outside production any http(s)
// origin is allowed.
func (c *Config) Origins() []string {
	if c.Production() {
		return c.AllowedOrigins
	}
	return []string{"https://*", "http://*"}
}

package config

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/gommon/log"
)

type Config struct {
	HttpHost   string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HttpPort   int    `envconfig:"HTTP_PORT" default:"3000"`
	StaticDir  string `envconfig:"STATIC_DIR" default:"public"`
	SecretFile string `envconfig:"SECRET_FILE" default:".syncstream-secret"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	MaxWorkers int    `envconfig:"MAX_WORKERS" default:"4"`

	MaxRooms        int `envconfig:"MAX_ROOMS" default:"1"`
	DefaultMaxUsers int `envconfig:"DEFAULT_MAX_USERS" default:"10"`
	MaxUsersLimit   int `envconfig:"MAX_USERS_LIMIT" default:"50"`

	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"10"`

	ConnectRateLimit int           `envconfig:"CONNECT_RATE_LIMIT" default:"10"`
	CreateRateLimit  int           `envconfig:"CREATE_RATE_LIMIT" default:"3"`
	RateWindow       time.Duration `envconfig:"RATE_WINDOW" default:"1m"`
	RateLimitKeys    int           `envconfig:"RATE_LIMIT_KEYS" default:"4096"`

	TunnelDomains    []string `envconfig:"TUNNEL_DOMAINS" default:"trycloudflare.com,ngrok-free.app,ngrok.io,loca.lt"`
	AllowRemoteFiles bool     `envconfig:"ALLOW_REMOTE_FILES" default:"false"`

	ResolverPrimary  string        `envconfig:"RESOLVER_PRIMARY" default:"yt-dlp"`
	ResolverFallback string        `envconfig:"RESOLVER_FALLBACK" default:"youtube-dl"`
	ResolverTimeout  time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"60s"`

	PingInterval time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	PublicIPURL  string        `envconfig:"PUBLIC_IP_URL" default:"https://api.ipify.org?format=json"`
}

var (
	c    Config
	once sync.Once
)

// Load reads the configuration from the environment
func Load() (*Config, error) {
	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func Get() *Config {
	once.Do(func() {
		conf, err := Load()
		if err != nil {
			log.Fatal(err)
		}
		c = *conf
	})
	return &c
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

var (
	ErrInvalidStorage       = errors.New("invalid storage driver")
	ErrEmptyAuthSecret      = errors.New("auth secret must not be empty")
	ErrInvalidTimezone      = errors.New("invalid analytics timezone")
	ErrInvalidShortIDLength = errors.New("short id length must be positive")
)

type Config struct {
	Env           string    `yaml:"env"`
	ShortIDLength int       `yaml:"short_id_length"`
	Storage       string    `yaml:"storage"`
	Log           Log       `yaml:"log"`
	HTTPServer    `yaml:"http_server"`
	Postgres      `yaml:"postgres"`
	Auth          Auth      `yaml:"auth"`
	Analytics     Analytics `yaml:"analytics"`
	CORS          CORS      `yaml:"cors"`
	RateLimit     RateLimit `yaml:"rate_limit"`
}

type Log struct {
	Level string `yaml:"level"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "file://migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Auth configures verification of session tokens issued by the identity provider.
type Auth struct {
	Secret     string        `yaml:"secret"`
	CookieName string        `yaml:"cookie_name"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

var defaultAuth = Auth{
	CookieName: "uid",
	TokenTTL:   24 * time.Hour,
}

type Analytics struct {
	Timezone          string `yaml:"timezone"`
	RecentClicksLimit int    `yaml:"recent_clicks_limit"`
}

var defaultAnalytics = Analytics{
	Timezone:          "UTC",
	RecentClicksLimit: 10,
}

// Location resolves the configured timezone. "Local" selects the host zone.
func (a *Analytics) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

var defaultCORS = CORS{
	AllowedOrigins: []string{"http://localhost:5173"},
}

type RateLimit struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

var defaultRateLimit = RateLimit{
	Enabled:           true,
	RequestsPerSecond: 10,
	Burst:             20,
}

// Load reads the YAML file at path. ${VAR} references are expanded from the
// environment before decoding.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		return fmt.Errorf("%w: %q", ErrInvalidStorage, c.Storage)
	}
	if c.Auth.Secret == "" {
		return ErrEmptyAuthSecret
	}
	if c.ShortIDLength <= 0 {
		return ErrInvalidShortIDLength
	}
	if _, err := c.Analytics.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimezone, err)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.ShortIDLength = 6
	cfg.Storage = StoragePostgres
	cfg.Log = Log{Level: "info"}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Auth = defaultAuth
	cfg.Analytics = defaultAnalytics
	cfg.CORS = defaultCORS
	cfg.RateLimit = defaultRateLimit
}

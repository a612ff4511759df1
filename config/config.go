package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "AUTHSYNC_"

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds the settings for authctl and identityd. Values are read from
// a YAML or TOML file and then overridden by AUTHSYNC_ prefixed
// environment variables.
type Config struct {
	// client side
	IdentityServiceURL string        `yaml:"identity_service_url" toml:"identity_service_url" env:"IDENTITY_SERVICE_URL"`
	Collection         string        `yaml:"collection" toml:"collection" env:"COLLECTION"`
	StoreDriver        string        `yaml:"store_driver" toml:"store_driver" env:"STORE_DRIVER"`
	StorePath          string        `yaml:"store_path" toml:"store_path" env:"STORE_PATH"`
	RequestTimeout     time.Duration `yaml:"request_timeout" toml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// server side
	ListenAddr      string   `yaml:"listen_addr" toml:"listen_addr" env:"LISTEN_ADDR"`
	DatabaseDSN     string   `yaml:"database_dsn" toml:"database_dsn" env:"DATABASE_DSN"`
	SigningKey      string   `yaml:"signing_key" toml:"signing_key" env:"SIGNING_KEY"`
	TokenExpiration int      `yaml:"token_expiration" toml:"token_expiration" env:"TOKEN_EXPIRATION"`
	Issuer          string   `yaml:"issuer" toml:"issuer" env:"ISSUER"`
	Audience        []string `yaml:"audience" toml:"audience" env:"AUDIENCE" envSeparator:","`
	RateLimit       int      `yaml:"rate_limit" toml:"rate_limit" env:"RATE_LIMIT"`
	HashCost        int      `yaml:"hash_cost" toml:"hash_cost" env:"HASH_COST"`
	UseHashid       bool     `yaml:"use_hashid" toml:"use_hashid" env:"USE_HASHID"`
}

// Defaults returns a Config suitable for local development
func Defaults() Config {
	return Config{
		IdentityServiceURL: "http://127.0.0.1:8090",
		Collection:         "users",
		StoreDriver:        StoreFile,
		StorePath:          defaultStorePath(),
		RequestTimeout:     10 * time.Second,
		ListenAddr:         ":8090",
		DatabaseDSN:        "file:identity.db?cache=shared",
		TokenExpiration:    24,
		Issuer:             "authsync",
		Audience:           []string{"authsync"},
		RateLimit:          20,
		HashCost:           10,
	}
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetAudience() []string {
	return c.Audience
}

// Load reads path, when given, on top of Defaults and applies environment
// overrides. A .env file in the working directory is loaded if present.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// the .env file is optional
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return goerrors.New("unsupported config format", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"path": path})
	}

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config file").
			WithMetadata(map[string]any{"path": path})
	}

	return nil
}

// ValidateClient checks the settings authctl needs
func (c Config) ValidateClient() error {
	pathRules := []validation.Rule{}
	if c.StoreDriver != StoreMemory {
		pathRules = append(pathRules, validation.Required)
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.IdentityServiceURL, validation.Required, is.URL),
		validation.Field(&c.StoreDriver, validation.Required, validation.In(StoreMemory, StoreFile, StoreSQLite)),
		validation.Field(&c.StorePath, pathRules...),
	)
}

// ValidateServer checks the settings identityd needs
func (c Config) ValidateServer() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
	)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "authsync", "session.json")
}

package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth        AuthConfig
	Permissions PermissionsConfig
	Argon2      Argon2Config
	Audit       AuditConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Admin       AdminConfig
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER,    default=user-accounts"`
	JWTTTL    time.Duration `env:"JWT_TTL,       default=24h"`
	// Required installs the token middleware on every /users route except
	// authenticate. When false, tokens are still honoured if sent.
	Required bool `env:"AUTH_REQUIRED, default=true"`
}

// PermissionsConfig holds the allow-lists. The default must stay last in the
// tag since it contains commas.
type PermissionsConfig struct {
	Roles        []string `env:"KNOWN_ROLES, default=admin,built-in,operator,driver"`
	Applications []string `env:"KNOWN_APPLICATIONS, default=backoffice,tracking,billing"`
}

type Argon2Config struct {
	MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB,  default=65536"`
	Iterations  uint32 `env:"ARGON2_ITERATIONS,  default=3"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM, default=2"`
}

type AuditConfig struct {
	Workers        int           `env:"AUDIT_WORKERS,   default=4"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=user_accounts"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// AdminConfig is read by cmd/create-admin only.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME, default=admin"`
	Password string `env:"ADMIN_PASSWORD, default=admin"`
	Email    string `env:"ADMIN_EMAIL,    default=admin@example.com"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" && c.IsProduction() {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.Auth.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if len(c.Permissions.Roles) == 0 {
		return errors.New("KNOWN_ROLES must not be empty")
	}
	return nil
}

// Process reads configuration through l and validates it.
func Process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := Process(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// Package config loads service settings from defaults, an optional YAML
// file, environment variables and command-line flags, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds application level configuration.
type Config struct {
	ServerPort       string        `yaml:"server_port"`
	Storage          string        `yaml:"storage"`
	MySQLDSN         string        `yaml:"mysql_dsn"`
	RedisAddr        string        `yaml:"redis_addr"`
	RedisDB          int           `yaml:"redis_db"`
	RedisPassword    string        `yaml:"redis_password"`
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	IdentityCacheTTL time.Duration `yaml:"identity_cache_ttl"`
	BcryptCost       int           `yaml:"bcrypt_cost"`
	LogLevel         string        `yaml:"log_level"`
	ResetDB          bool          `yaml:"reset_db"`
	SwaggerHost      string        `yaml:"swagger_host"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the development defaults. The JWT secret is not safe
// for production.
func Default() *Config {
	return &Config{
		ServerPort:       "8080",
		Storage:          StorageMySQL,
		MySQLDSN:         "user:password@tcp(localhost:3306)/tasks?charset=utf8mb4&parseTime=True&loc=UTC",
		RedisAddr:        "localhost:6379",
		JWTSecret:        "change-me",
		TokenTTL:         24 * time.Hour,
		IdentityCacheTTL: 5 * time.Minute,
		BcryptCost:       10,
		LogLevel:         "info",
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load builds Config from defaults, then the YAML file named by --config or
// CONFIG_FILE, then environment variables, then flags from args.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags := cfg.bindFlags(fs)
	configFile := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configFile != "" {
		if err := cfg.loadFile(*configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	flags.apply(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("config: mysql_dsn is required for mysql storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q (want %s or %s)", c.Storage, StorageMySQL, StorageMemory)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret must not be empty")
	}
	if c.TokenTTL <= 0 || c.IdentityCacheTTL <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: durations must be positive")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.MySQLDSN = getEnv("MYSQL_DSN", c.MySQLDSN)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.SwaggerHost = getEnv("SWAGGER_HOST", c.SwaggerHost)

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.BcryptCost, err = getEnvInt("BCRYPT_COST", c.BcryptCost); err != nil {
		return err
	}
	if c.ResetDB, err = getEnvBool("RESET_DB", c.ResetDB); err != nil {
		return err
	}
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.IdentityCacheTTL, err = getEnvDuration("IDENTITY_CACHE_TTL", c.IdentityCacheTTL); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// flagValues holds parsed flags until the file and environment have been
// applied; only flags set on the command line override them.
type flagValues struct {
	serverPort, storage, mysqlDSN, redisAddr, jwtSecret, logLevel string
	redisDB, bcryptCost                                            int
	resetDB                                                        bool
	tokenTTL, identityCacheTTL, shutdownTimeout                    time.Duration
}

func (c *Config) bindFlags(fs *pflag.FlagSet) *flagValues {
	v := &flagValues{}
	fs.StringVarP(&v.serverPort, "port", "p", c.ServerPort, "HTTP listen port")
	fs.StringVar(&v.storage, "storage", c.Storage, "storage backend: mysql or memory")
	fs.StringVar(&v.mysqlDSN, "mysql-dsn", c.MySQLDSN, "MySQL DSN")
	fs.StringVar(&v.redisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.IntVar(&v.redisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&v.jwtSecret, "jwt-secret", c.JWTSecret, "HMAC secret for bearer tokens")
	fs.DurationVar(&v.tokenTTL, "token-ttl", c.TokenTTL, "bearer token lifetime")
	fs.DurationVar(&v.identityCacheTTL, "identity-cache-ttl", c.IdentityCacheTTL, "identity cache entry lifetime")
	fs.IntVar(&v.bcryptCost, "bcrypt-cost", c.BcryptCost, "bcrypt cost for new passwords")
	fs.StringVar(&v.logLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&v.resetDB, "reset-db", c.ResetDB, "roll back all migrations before applying them")
	fs.DurationVar(&v.shutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown limit")
	return v
}

func (v *flagValues) apply(fs *pflag.FlagSet, c *Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("port", func() { c.ServerPort = v.serverPort })
	set("storage", func() { c.Storage = v.storage })
	set("mysql-dsn", func() { c.MySQLDSN = v.mysqlDSN })
	set("redis-addr", func() { c.RedisAddr = v.redisAddr })
	set("redis-db", func() { c.RedisDB = v.redisDB })
	set("jwt-secret", func() { c.JWTSecret = v.jwtSecret })
	set("token-ttl", func() { c.TokenTTL = v.tokenTTL })
	set("identity-cache-ttl", func() { c.IdentityCacheTTL = v.identityCacheTTL })
	set("bcrypt-cost", func() { c.BcryptCost = v.bcryptCost })
	set("log-level", func() { c.LogLevel = v.logLevel })
	set("reset-db", func() { c.ResetDB = v.resetDB })
	set("shutdown-timeout", func() { c.ShutdownTimeout = v.shutdownTimeout })
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return parsed, nil
}

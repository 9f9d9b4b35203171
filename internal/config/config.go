package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSecretKey is the fallback session secret used when SECRET_KEY is unset.
// It is only acceptable for local development.
const DefaultSecretKey = "your-secret-key-here"

// Config holds all runtime configuration values.  It is built once in main
// and passed explicitly to every component that needs it.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	SecretKey     string // signs the browser session cookie
	JWTSecret     string // signs bearer access tokens for the /v1 API
	AccessTTLMin  int    // access token time-to-live in minutes
	BcryptCost    int    // bcrypt cost for password hashing
	SessionName   string // name of the session cookie
	SessionSecure bool   // mark the session cookie Secure (HTTPS only)
	SessionMaxAge int    // session cookie lifetime in seconds; 0 means browser session

	DB     DBConfig
	Log    LogConfig
	Cache  CacheConfig
	Redis  RedisConfig
	MQTT   MQTTConfig
	AMQP   AMQPConfig
	Influx InfluxConfig
}

// DBConfig describes the relational store and its connection pool.
type DBConfig struct {
	Driver          string // "mysql" or "sqlite3"
	User            string
	Pass            string
	Host            string
	Port            string
	Name            string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string // trace|debug|info|warn|error
	Format string // console|json
	Output string // stdout|stderr
}

// Load reads configuration values from the environment, after loading a
// .env file from the working directory when one exists.  Every key has a
// default so a fresh checkout starts against a local MySQL.
func Load() Config {
	// A missing .env is normal in containers; variables may be set directly.
	_ = godotenv.Load()

	secret := envStr("SECRET_KEY", DefaultSecretKey)
	driver := strings.ToLower(envStr("DB_DRIVER", "mysql"))
	if driver == "sqlite" {
		driver = "sqlite3"
	}

	return Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          envStr("APP_PORT", "5000"),
		SecretKey:     secret,
		JWTSecret:     envStr("JWT_SECRET", secret),
		AccessTTLMin:  envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:    envInt("BCRYPT_COST", 10),
		SessionName:   envStr("SESSION_NAME", "session"),
		SessionSecure: envBool("SESSION_SECURE", false),
		SessionMaxAge: envInt("SESSION_MAX_AGE", 0),
		DB: DBConfig{
			Driver:          driver,
			User:            envStr("DB_USER", "root"),
			Pass:            os.Getenv("DB_PASS"), // empty allowed
			Host:            envStr("DB_HOST", "localhost"),
			Port:            envStr("DB_PORT", "3306"),
			Name:            envStr("DB_NAME", "greenhouse"),
			Path:            envStr("DB_PATH", "data/greenhouse.db"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "console"),
			Output: envStr("LOG_OUTPUT", "stdout"),
		},
		Cache:  LoadCacheConfig(),
		Redis:  LoadRedisConfig(),
		MQTT:   LoadMQTTConfig(),
		AMQP:   LoadAMQPConfig(),
		Influx: LoadInfluxConfig(),
	}
}

// Validate reports configuration that would make the server misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("APP_PORT is empty"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	switch c.DB.Driver {
	case "mysql":
		if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
			errs = append(errs, errors.New("DB_HOST, DB_NAME and DB_USER are required for mysql"))
		}
	case "sqlite3":
		if c.DB.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	if c.DB.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DB.MaxOpenConns))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost))
	}
	if c.AccessTTLMin < 1 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTTLMin))
	}
	return errors.Join(errs...)
}

// UsesDefaultSecret reports whether the session secret was left at its default.
func (c Config) UsesDefaultSecret() bool { return c.SecretKey == DefaultSecretKey }

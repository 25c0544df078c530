package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minimumSecretLength = 32

var (
	ErrMissingTokenSecret = errors.New("TOKEN_SECRET is required")
	ErrWeakTokenSecret    = fmt.Errorf("TOKEN_SECRET must decode to at least %d bytes", minimumSecretLength)
	ErrUnknownDriver      = errors.New("DB_DRIVER must be postgres or sqlite")
)

type DatabaseConfig struct {
	Driver           string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	SQLitePath       string
}

func (c *DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	return "host=" + c.PostgresHost +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" port=" + c.PostgresPort + " sslmode=disable TimeZone=UTC"
}

type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
}

func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

type AdminConfig struct {
	Username string
	Password string
}

// TokenConfig carries the signing key and lifetimes. Secret is decoded once
// here and never mutated afterwards.
type TokenConfig struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CookieMaxAge    int
	CookieSecure    bool
}

type SecurityConfig struct {
	RateLimitPerSecond                 float64
	RedisAddr                          string
	LockoutThreshold                   int
	LockoutWindow                      time.Duration
	InvalidateSessionsOnPasswordChange bool
}

type Config struct {
	Database *DatabaseConfig
	Server   *ServerConfig
	Admin    *AdminConfig
	Token    *TokenConfig
	Security *SecurityConfig
}

// LoadConfig reads dotenvPath when it exists and then the process environment.
func LoadConfig(dotenvPath string) (*Config, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	r := &envReader{}

	dbCfg := &DatabaseConfig{
		Driver:           r.str("DB_DRIVER", DriverPostgres),
		PostgresHost:     r.str("POSTGRES_HOST", "localhost"),
		PostgresPort:     r.str("POSTGRES_PORT", "5432"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		SQLitePath:       r.str("SQLITE_PATH", "todolist.db"),
	}
	if dbCfg.Driver != DriverPostgres && dbCfg.Driver != DriverSQLite {
		return nil, ErrUnknownDriver
	}

	serverCfg := &ServerConfig{
		Port:           r.str("SERVER_PORT", "8080"),
		Environment:    r.str("APP_ENV", "production"),
		AllowedOrigins: splitList(r.str("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}
	adminCfg := &AdminConfig{
		Username: os.Getenv("ADMIN_USERNAME"),
		Password: os.Getenv("ADMIN_PASSWORD"),
	}

	secret, err := decodeSecret(os.Getenv("TOKEN_SECRET"))
	if err != nil {
		return nil, err
	}
	refreshTTL := r.duration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	tokenCfg := &TokenConfig{
		Secret:          secret,
		AccessTokenTTL:  r.duration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: refreshTTL,
		CookieMaxAge:    r.integer("COOKIE_MAX_AGE", int(refreshTTL/time.Second)),
		CookieSecure:    r.boolean("COOKIE_SECURE", false),
	}

	securityCfg := &SecurityConfig{
		RateLimitPerSecond:                 r.float("RATE_LIMIT_PER_SECOND", 5),
		RedisAddr:                          os.Getenv("REDIS_ADDR"),
		LockoutThreshold:                   r.integer("LOCKOUT_THRESHOLD", 5),
		LockoutWindow:                      r.duration("LOCKOUT_WINDOW", 15*time.Minute),
		InvalidateSessionsOnPasswordChange: r.boolean("INVALIDATE_SESSIONS_ON_PASSWORD_CHANGE", false),
	}

	if r.err != nil {
		return nil, r.err
	}
	if tokenCfg.AccessTokenTTL <= 0 || tokenCfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &Config{
		Database: dbCfg,
		Server:   serverCfg,
		Admin:    adminCfg,
		Token:    tokenCfg,
		Security: securityCfg,
	}, nil
}

// decodeSecret accepts base64url with or without padding.
func decodeSecret(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingTokenSecret
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_SECRET is not base64url: %w", err)
	}
	if len(key) < minimumSecretLength {
		return nil, ErrWeakTokenSecret
	}
	return key, nil
}

// envReader keeps the first parse failure so LoadConfig can report it once.
type envReader struct {
	err error
}

func (r *envReader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return d
}

func (r *envReader) integer(key string, fallback int) int {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return n
}

func (r *envReader) float(key string, fallback float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return f
}

func (r *envReader) boolean(key string, fallback bool) bool {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return fallback
	}
	return b
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

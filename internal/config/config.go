package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/keymasterhq/keymaster/pkg/db"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VerifyRateLimit VerifyRateLimitConfig

	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

// VerifyRateLimitConfig throttles the public verification endpoints per
// client address. Disabled unless redis is configured.
type VerifyRateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewGameCatalog),
	fx.Provide(func(cfg Config) db.Config { return cfg.DB() }),
)

// Load loads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:          getenv("APP_SERVICE", "keymaster"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":5000"),
		AuthCookieSecure: cookieSecure,
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "keymaster"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		VerifyRateLimit: VerifyRateLimitConfig{
			Enabled: getenvBool("VERIFY_RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("VERIFY_RATE_LIMIT_RATE", 10),
			Burst:   getenvInt("VERIFY_RATE_LIMIT_BURST", 30),
		},

		BootstrapAdminUsername: getenv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
		BootstrapAdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}
}

// DB maps the flat env settings onto the shared db.Config.
func (c Config) DB() db.Config {
	return db.Config{
		Type:            c.DBType,
		Host:            c.DBHost,
		Port:            c.DBPort,
		Name:            c.DBName,
		User:            c.DBUser,
		Password:        c.DBPassword,
		SSLMode:         c.DBSSLMode,
		MaxIdleConn:     c.DBMaxIdleConn,
		MaxOpenConn:     c.DBMaxOpenConn,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

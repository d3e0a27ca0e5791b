// Package config loads the panel configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the connection string in URL form, as pg_dump expects it.
func (c *DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type ServerConfig struct {
	Addr         string
	RealtimeAddr string
	Env          string
	// BaseDomain is the host under which installed apps are proxied as
	// <subdomain>.<BaseDomain>.
	BaseDomain     string
	AllowedOrigins []string
	SecureCookies  bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string
}

type SystemConfig struct {
	LetsEncryptEmail string
	WebrootPath      string
	BackupDir        string
	PanelService     string
	PanelRepoPath    string
	PanelRepoRemote  string
	SSLRenewSchedule string
	VerifyPrefix     string
	DNSServer        string
}

type MailConfig struct {
	VhostsPath       string
	VmailboxPath     string
	DovecotUsersPath string
	MailRoot         string
}

type SecurityConfig struct {
	LoginRatePerMinute int
}

// Config holds all configuration
type Config struct {
	DB       DBConfig
	Server   ServerConfig
	JWT      JWTConfig
	Log      LogConfig
	Storage  StorageConfig
	System   SystemConfig
	Mail     MailConfig
	Security SecurityConfig
}

// Load loads configuration from environment variables. A .env file in the
// working directory, when present, is loaded first without overriding
// variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "lighthouse"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "lighthouse"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", gormlogger.Warn),
		},
		Server: ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":3000"),
			RealtimeAddr:   getEnv("REALTIME_ADDR", ":3001"),
			Env:            getEnv("APP_ENV", "development"),
			BaseDomain:     getEnv("BASE_DOMAIN", "localhost"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
			SecureCookies:  getEnvAsBool("SECURE_COOKIES", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 168),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "postgres"),
		},
		System: SystemConfig{
			LetsEncryptEmail: getEnv("LETSENCRYPT_EMAIL", ""),
			WebrootPath:      getEnv("WEBROOT_PATH", "/var/www/html"),
			BackupDir:        getEnv("BACKUP_DIR", "/var/backups/lighthouse"),
			PanelService:     getEnv("PANEL_SERVICE", "lighthouse"),
			PanelRepoPath:    getEnv("PANEL_REPO_PATH", ""),
			PanelRepoRemote:  getEnv("PANEL_REPO_REMOTE", "origin"),
			SSLRenewSchedule: getEnv("SSL_RENEW_SCHEDULE", ""),
			VerifyPrefix:     getEnv("VERIFY_PREFIX", "_lighthouse-verify"),
			DNSServer:        getEnv("DNS_SERVER", ""),
		},
		Mail: MailConfig{
			VhostsPath:       getEnv("MAIL_VHOSTS_PATH", "/etc/postfix/vhosts"),
			VmailboxPath:     getEnv("MAIL_VMAILBOX_PATH", "/etc/postfix/vmailbox"),
			DovecotUsersPath: getEnv("DOVECOT_USERS_PATH", "/etc/dovecot/users"),
			MailRoot:         getEnv("MAIL_ROOT", "/var/mail/vhosts"),
		},
		Security: SecurityConfig{
			LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the panel cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.JWT.Secret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWT.Secret = "lighthouse-development-secret"
	}
	if c.JWT.ExpirationHours <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("addr", c.Server.Addr),
		zap.String("realtime_addr", c.Server.RealtimeAddr),
		zap.String("storage", c.Storage.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.DBName),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsLogLevel(key string, defaultValue gormlogger.LogLevel) gormlogger.LogLevel {
	switch getEnv(key, "") {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return defaultValue
	}
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpirationHours) * time.Hour
}

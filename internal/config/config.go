// Package config предоставляет функции для работы с конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
)

// Config основная структура конфигурации приложения
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Password  PasswordConfig  `mapstructure:"password"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig конфигурация серверов
type ServerConfig struct {
	HTTPPort     int           `mapstructure:"http_port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	Environment  string        `mapstructure:"environment"` // development | production
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// IsDevelopment сообщает, можно ли отдавать клиенту внутренние детали ошибок
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | memory
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	SeedFile string `mapstructure:"seed_file"` // YAML с учетными записями, применяется при старте
}

// GetDSN формирует строку подключения; DATABASE_URL имеет приоритет
func (d DatabaseConfig) GetDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// JWTConfig конфигурация JWT
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	Issuer     string        `mapstructure:"issuer"`
}

// PasswordConfig параметры хэширования паролей
type PasswordConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// AuthConfig параметры разрешения личности
type AuthConfig struct {
	ProbeOrder    string `mapstructure:"probe_order"` // fixed | shape
	RecheckStatus bool   `mapstructure:"recheck_status"`
}

// CORSConfig конфигурация CORS
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig ограничение частоты попыток входа
type RateLimitConfig struct {
	LoginRequests int           `mapstructure:"login_requests"`
	LoginWindow   time.Duration `mapstructure:"login_window"`
}

// LoggingConfig конфигурация логирования
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// setDefaults задает значения по умолчанию; viper видит переменные окружения
// только для известных ему ключей, поэтому здесь перечислены все ключи.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "assignment_portal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.seed_file", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("jwt.issuer", "assignment-portal")

	v.SetDefault("password.bcrypt_cost", 10)

	v.SetDefault("auth.probe_order", "fixed")
	v.SetDefault("auth.recheck_status", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("rate_limit.login_requests", 5)
	v.SetDefault("rate_limit.login_window", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// LoadConfig загружает конфигурацию из YAML файла и переменных окружения.
// Отсутствующий файл не считается ошибкой: все параметры можно задать через окружение.
func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// APP_JWT_SECRET, APP_DATABASE_HOST и т.д.
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Короткие имена, которые исторически использует фронтенд и docker-compose
	_ = v.BindEnv("jwt.secret", "APP_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("database.url", "APP_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("cors.allowed_origins", "APP_CORS_ALLOWED_ORIGINS", "CORS_ORIGIN")

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные параметры.
// Отсутствие секрета подписи является фатальной ошибкой конфигурации.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return apperrors.New(apperrors.KindConfiguration, "jwt.secret (JWT_SECRET) is required")
	}
	if c.JWT.Expiration <= 0 {
		return apperrors.New(apperrors.KindConfiguration, "jwt.expiration must be positive")
	}

	switch c.Auth.ProbeOrder {
	case "fixed", "shape":
	default:
		return apperrors.New(apperrors.KindConfiguration,
			fmt.Sprintf("auth.probe_order must be fixed or shape, got %q", c.Auth.ProbeOrder))
	}

	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return apperrors.New(apperrors.KindConfiguration,
			fmt.Sprintf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}

	return nil
}

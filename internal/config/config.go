// Package config - настройки task-server: флаги, переменные окружения
// TASKS_* и необязательный файл конфигурации (через viper).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"

	"tenant-task-manager/internal/logger"
	"tenant-task-manager/internal/middleware"
	"tenant-task-manager/internal/tenant"
)

// EnvPrefix - префикс переменных окружения.
const EnvPrefix = "TASKS"

// ConfigFlag - флаг с путём к файлу конфигурации.
const ConfigFlag = "config"

// Хранилища.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config - все настройки сервера.
type Config struct {
	HTTPAddr string

	LogLevel  string
	LogFormat string

	Store       string
	StorePath   string
	PostgresDSN string

	RedisAddr string
	CacheTTL  time.Duration

	TenantHeader  string
	TenantPolicy  string
	DefaultTenant string

	AuthUser         string
	AuthPasswordHash string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DoneTerminal bool
}

// NewConfig возвращает настройки по умолчанию.
func NewConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       logger.FormatConsole,
		Store:           StoreMemory,
		CacheTTL:        5 * time.Minute,
		TenantHeader:    middleware.DefaultTenantHeader,
		TenantPolicy:    string(middleware.PolicyReject),
		DefaultTenant:   string(middleware.DefaultTenant),
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Opt - одна опция командной строки.
type Opt struct {
	DestP   any // указатель на поле Config
	Flag    string
	Default any
	Desc    string
}

// Opts описывает опции, привязанные к полям c. Значения по умолчанию
// берутся из текущих значений полей.
func (c *Config) Opts() []Opt {
	return []Opt{
		{&c.HTTPAddr, "http-addr", c.HTTPAddr, "address to listen on"},
		{&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error"},
		{&c.LogFormat, "log-format", c.LogFormat, "log format: console, json, logfmt"},
		{&c.Store, "store", c.Store, "task store: memory, file, sqlite, postgres"},
		{&c.StorePath, "store-path", c.StorePath, "path to the file or sqlite database"},
		{&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "postgres connection string"},
		{&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for the task cache; empty disables caching"},
		{&c.CacheTTL, "cache-ttl", c.CacheTTL, "task cache entry lifetime"},
		{&c.TenantHeader, "tenant-header", c.TenantHeader, "request header carrying the tenant id"},
		{&c.TenantPolicy, "tenant-policy", c.TenantPolicy, "missing tenant policy: reject or default"},
		{&c.DefaultTenant, "default-tenant", c.DefaultTenant, "tenant used by the default policy"},
		{&c.AuthUser, "auth-user", c.AuthUser, "basic auth user; empty disables authentication"},
		{&c.AuthPasswordHash, "auth-password-hash", c.AuthPasswordHash, "bcrypt hash of the basic auth password"},
		{&c.RequestTimeout, "request-timeout", c.RequestTimeout, "per-request timeout for the tasks API"},
		{&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout"},
		{&c.DoneTerminal, "done-terminal", c.DoneTerminal, "forbid moving tasks out of DONE"},
	}
}

// NewViper создаёт viper с префиксом TASKS_ и заменой "-" на "_" в именах
// переменных окружения.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	return v
}

// BindOptions регистрирует опции во flags и привязывает их к v.
func BindOptions(v *viper.Viper, flags *pflag.FlagSet, opts []Opt) error {
	flags.String(ConfigFlag, "", "path to a config file (toml, yaml or json)")
	if err := v.BindPFlag(ConfigFlag, flags.Lookup(ConfigFlag)); err != nil {
		return err
	}

	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			flags.StringVar(destP, o.Flag, o.Default.(string), o.Desc)
		case *bool:
			flags.BoolVar(destP, o.Flag, o.Default.(bool), o.Desc)
		case *time.Duration:
			flags.DurationVar(destP, o.Flag, o.Default.(time.Duration), o.Desc)
		default:
			return fmt.Errorf("option %s: unsupported destination type %T", o.Flag, o.DestP)
		}
		if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
			return err
		}
	}
	return nil
}

// Load читает файл конфигурации (если задан) и переносит итоговые
// значения в поля. Приоритет: флаг, окружение, файл, значение по умолчанию.
func Load(v *viper.Viper, opts []Opt) error {
	if path := v.GetString(ConfigFlag); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			*destP = v.GetString(o.Flag)
		case *bool:
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			*destP = v.GetDuration(o.Flag)
		}
	}
	return nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.StorePath == "" {
			errs = append(errs, fmt.Errorf("store %s requires store-path", c.Store))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("store postgres requires postgres-dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	if _, err := c.LoggerConfig(); err != nil {
		errs = append(errs, err)
	}

	if _, err := middleware.ParseTenantPolicy(c.TenantPolicy); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.TenantHeader) == "" {
		errs = append(errs, errors.New("tenant-header must not be empty"))
	}

	if c.AuthUser != "" {
		if _, err := bcrypt.Cost([]byte(c.AuthPasswordHash)); err != nil {
			errs = append(errs, fmt.Errorf("auth-password-hash: %w", err))
		}
	}

	if c.RequestTimeout < 0 || c.ShutdownTimeout < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	return errors.Join(errs...)
}

// LoggerConfig переводит log-level и log-format в logger.Config.
func (c Config) LoggerConfig() (logger.Config, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.Config{}, fmt.Errorf("log-level: %w", err)
	}

	switch c.LogFormat {
	case logger.FormatConsole, logger.FormatJSON, logger.FormatLogfmt:
	default:
		return logger.Config{}, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return logger.Config{Format: c.LogFormat, Level: level}, nil
}

// TenantConfig собирает настройки middleware арендатора.
func (c Config) TenantConfig() (middleware.TenantConfig, error) {
	policy, err := middleware.ParseTenantPolicy(c.TenantPolicy)
	if err != nil {
		return middleware.TenantConfig{}, err
	}
	return middleware.TenantConfig{
		Header:  c.TenantHeader,
		Policy:  policy,
		Default: tenant.ID(c.DefaultTenant),
	}, nil
}

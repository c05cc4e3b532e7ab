package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ARTM2000/acorn"
)

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	LogLevel    string `mapstructure:"log_level"`
	Trace       string `mapstructure:"trace"`
}

type Database struct {
	URL    string
	Logger *zap.Logger
}

func (db *Database) Query(ctx context.Context, q string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	db.Logger.Debug("query", zap.String("sql", q))
	return "row-result", nil
}

func (db *Database) Close() error {
	db.Logger.Info("database closed", zap.String("url", db.URL))
	return nil
}

// UserRepository and UserService are never registered; the container
// autowires them from their fields.
type UserRepository struct {
	DB     *Database
	Logger *zap.Logger
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (string, error) {
	return r.DB.Query(ctx, fmt.Sprintf("SELECT * FROM users WHERE id = %d", id))
}

type UserService struct {
	Repo    *UserRepository
	Logger  *zap.Logger
	Timeout time.Duration `inject:"timeout" default:"2s"`
}

func (s *UserService) GetUser(ctx context.Context, id int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	s.Logger.Info("looking up user", zap.Int("id", id), zap.Duration("timeout", s.Timeout))
	return s.Repo.FindByID(ctx, id)
}

// ---------------------------------------------------------------------------
// Factories
// ---------------------------------------------------------------------------

func NewConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func NewLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = level
	return zc.Build()
}

func NewDatabase(cfg *Config, l *zap.Logger) *Database {
	return &Database{URL: cfg.DatabaseURL, Logger: l.Named("db")}
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// wire builds the application container. The logger is resolved from a
// bootstrap container first so the application container can log through
// it as well.
func wire(v *viper.Viper) (acorn.Container, *zap.Logger, func(context.Context) error, error) {
	boot := acorn.New()
	if err := acorn.Supply(boot, v); err != nil {
		return nil, nil, nil, err
	}
	if err := acorn.Provide[*Config](boot, NewConfig); err != nil {
		return nil, nil, nil, err
	}
	if err := acorn.Provide[*zap.Logger](boot, NewLogger); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := acorn.Resolve[*Config](boot)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := acorn.Resolve[*zap.Logger](boot)
	if err != nil {
		return nil, nil, nil, err
	}

	tp, shutdownTracing, err := newTracerProvider(cfg.Trace)
	if err != nil {
		return nil, nil, nil, err
	}

	c := acorn.New(
		acorn.WithLogger(log.Named("acorn")),
		acorn.WithTracerProvider(tp),
	)
	if err := acorn.Supply(c, cfg); err != nil {
		return nil, nil, nil, err
	}
	if err := acorn.Supply(c, log); err != nil {
		return nil, nil, nil, err
	}
	if err := acorn.Provide[*Database](c, NewDatabase); err != nil {
		return nil, nil, nil, err
	}

	return c, log, shutdownTracing, nil
}

// Package bootstrap opens the pieces every roastery binary shares: env
// config, the structured logger and the database, plus optional redis.
package bootstrap

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/migrate"
	"github.com/threshingfloor/roastery-backend/pkg/redis"
)

// Process is a started binary. Close releases everything it opened, newest
// first.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env and the environment, builds the logger for kind, opens
// the database and applies dev migrations when enabled.
func Start(ctx context.Context, kind string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return nil, err
	}
	cfg.Service.Kind = kind

	p := &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	client, err := db.New(ctx, cfg.DB, p.Logger)
	if err != nil {
		p.Logger.Error(ctx, "failed to bootstrap database", err)
		return nil, err
	}
	p.DB = client
	p.onClose("database", client.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, p.Logger, client); err != nil {
		p.Logger.Error(ctx, "failed to run dev migrations", err)
		p.Close()
		return nil, err
	}
	return p, nil
}

// Redis connects to redis and ties the client to the process lifetime.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		p.Logger.Error(ctx, "failed to bootstrap redis", err)
		return nil, err
	}
	p.onClose("redis", client.Close)
	return client, nil
}

// OnClose registers fn to run on Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.onClose(name, fn)
}

func (p *Process) onClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close runs the registered closers in reverse order. Failures are logged
// and returned together.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "resource", c.name), "error closing resource", err)
			errs = multierr.Append(errs, err)
		}
	}
	p.closers = nil
	return errs
}

// Fatal logs err, releases resources and exits non-zero.
func (p *Process) Fatal(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close()
	os.Exit(1)
}

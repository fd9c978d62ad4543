package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JaimeStill/salesflow/internal/config"
	"github.com/JaimeStill/salesflow/internal/infrastructure"
	"github.com/JaimeStill/salesflow/internal/pipeline"
)

// app owns the infrastructure for one command invocation.
type app struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
	rt    *pipeline.Runtime
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}

	infra, err := infrastructure.New(ctx, cfg, flags.verbose)
	if err != nil {
		return nil, err
	}

	infra.Logger.Debug("salesflow starting",
		zap.String("env", cfg.Env()),
		zap.Bool("database", infra.Database != nil),
		zap.Bool("storage", infra.Storage != nil),
	)

	if err := infra.Start(); err != nil {
		if serr := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); serr != nil {
			infra.Logger.Error("shutdown failed", zap.Error(serr))
		}
		return nil, err
	}

	return &app{
		cfg:   cfg,
		infra: infra,
		rt:    pipeline.NewRuntime(cfg, infra),
	}, nil
}

func (a *app) close() {
	if err := a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration()); err != nil {
		a.infra.Logger.Error("shutdown failed", zap.Error(err))
	}
	_ = a.infra.Logger.Sync()
}

// dayLayout is the YYYYMMDD form shared by file names and date flags.
const dayLayout = "20060102"

// parseDay reads a YYYYMMDD flag value as midday in loc.
func parseDay(flag, value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dayLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYYMMDD", flag, value)
	}
	return d.Add(12 * time.Hour), nil
}

// now returns the reference time of the run. An --as-of date is taken
// as midday in the audit time zone.
func (a *app) now() (time.Time, error) {
	loc := a.cfg.Audit.Location()
	if flags.asOf == "" {
		return time.Now().In(loc), nil
	}
	return parseDay("as-of", flags.asOf, loc)
}

func (a *app) execute(ctx context.Context, stages ...pipeline.Stage) (*pipeline.State, error) {
	now, err := a.now()
	if err != nil {
		return nil, err
	}
	s := pipeline.NewState(now)
	return s, pipeline.Execute(ctx, a.rt, stages, s)
}

// withApp runs fn against a started app and shuts it down afterwards.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

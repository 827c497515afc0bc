package cmd

import (
	"context"
	"fmt"

	"github.com/example/semesterplan/internal/config"
	"github.com/example/semesterplan/internal/db"
	"github.com/example/semesterplan/internal/ics"
	"github.com/example/semesterplan/internal/importer"
	"github.com/example/semesterplan/internal/logger"
	"github.com/example/semesterplan/internal/metrics"
	"github.com/example/semesterplan/internal/migrate"
	"github.com/example/semesterplan/internal/reservations"
)

// app bundles what every database-backed command needs.
type app struct {
	cfg config.Config
	log *logger.ZapLogger
	db  *db.DB
}

func openApp(ctx context.Context, migrateUp bool) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return &app{cfg: cfg, log: log, db: d}, nil
}

func (a *app) Close() {
	a.db.Close()
	_ = a.log.Sync()
}

func newParser(cfg config.Config, log logger.Logger) (*ics.Parser, error) {
	rules, err := ics.NewLocationRules(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return ics.NewParser(
		ics.WithCorrelationProperty(cfg.CorrelationProperty),
		ics.WithNormalizer(ics.NewNormalizer(rules)),
		ics.WithLogger(log),
	), nil
}

func (a *app) importService(m *metrics.Manager) (*importer.Service, error) {
	p, err := newParser(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	repo := reservations.NewRepo(a.db)
	svc := &importer.Service{
		Parser:  p,
		Lookup:  repo,
		Store:   repo,
		History: repo,
		Log:     a.log,
	}
	if m != nil {
		svc.Metrics = m
	}
	return svc, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/zulandar/crewdesk/internal/conductor"
	"github.com/zulandar/crewdesk/internal/config"
	"github.com/zulandar/crewdesk/internal/db"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/kv"
	"github.com/zulandar/crewdesk/internal/logging"
	"github.com/zulandar/crewdesk/internal/notify"
	"github.com/zulandar/crewdesk/internal/session"
	"github.com/zulandar/crewdesk/internal/stream"
	"github.com/zulandar/crewdesk/internal/webhook"
	"gorm.io/gorm"
)

// app holds the services shared by the commands.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	sessions  *session.Manager
	conductor *conductor.Conductor
	webhook   *webhook.Client
}

// loadConfig reads the config file and sets up logging to logOut.
func loadConfig(configPath string, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(logOut, cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

// connectFromConfig loads config and opens the migrated database.
func connectFromConfig(configPath string, logOut io.Writer) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(configPath, logOut)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.OpenAndMigrate(func() (*gorm.DB, error) { return db.Open(cfg.Database) })
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// openApp wires the session store, notifiers, backends and conductor.
func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath, logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: gormDB}

	store, err := kv.NewGormStore(kv.GormStoreOpts{DB: gormDB, MaxValueBytes: cfg.Sessions.MaxValueBytes})
	if err != nil {
		return nil, err
	}
	a.sessions, err = session.NewManager(ctx, session.ManagerOpts{
		Store:           store,
		MaxSessions:     cfg.Sessions.MaxSessions,
		MaxMessages:     cfg.Sessions.MaxMessages,
		ReducedSessions: cfg.Sessions.ReducedSessions,
		ReducedMessages: cfg.Sessions.ReducedMessages,
		Quota:           cfg.Sessions.MaxValueBytes,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return nil, err
	}

	if cfg.Webhook.URL != "" {
		a.webhook, err = webhook.NewClient(webhook.ClientOpts{
			HTTP:         &http.Client{},
			URL:          cfg.Webhook.URL,
			APIKey:       cfg.Webhook.APIKey,
			APIKeyHeader: cfg.Webhook.APIKeyHeader,
			UserID:       cfg.Webhook.UserID,
			Timeout:      cfg.Webhook.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	var runner *stream.Runner
	if cfg.Orchestrator.URL != "" {
		client, err := stream.NewClient(stream.ClientOpts{
			URL:         cfg.Orchestrator.URL,
			TaskType:    cfg.Orchestrator.TaskType,
			Crew:        cfg.Crew,
			IdleTimeout: cfg.Orchestrator.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		runner, err = stream.NewRunner(stream.RunnerOpts{Client: client, Store: a.sessions, Notifier: notifier})
		if err != nil {
			return nil, err
		}
	}

	var detector *detect.Detector
	if cfg.DetectEnabled() {
		detector = detect.Default()
	}
	a.conductor, err = conductor.New(conductor.Opts{
		Sessions: a.sessions,
		Mode:     cfg.Mode,
		Detector: detector,
		Runner:   runner,
		Webhook:  a.webhook,
		DB:       gormDB,
		Notifier: notifier,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close stops background work and releases the database.
func (a *app) Close() {
	if a.conductor != nil {
		a.conductor.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

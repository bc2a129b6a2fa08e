package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/driptext/driptext/internal/config"
	"github.com/driptext/driptext/internal/dispatch"
	"github.com/driptext/driptext/internal/httpapi"
	"github.com/driptext/driptext/internal/service"
	"github.com/driptext/driptext/internal/store"
	"github.com/driptext/driptext/internal/tracker"
	"github.com/driptext/driptext/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	settings, err := config.NewSettingsStore(
		filepath.Join(filepath.Dir(cfg.System.DBPath), "settings.json"),
		config.RuntimeSettings{
			CronExpr:         cfg.Dispatch.CronExpr,
			PortionsPerCycle: cfg.Dispatch.PortionsPerCycle,
			DuplicatePolicy:  tracker.OverwriteLatest,
		},
	)
	if err != nil {
		log.Fatal("Failed to load runtime settings: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.System.DBPath)
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer db.Close()

	channels := make(map[tracker.ChannelType]dispatch.Channel)
	if cfg.Email.Enabled() {
		channels[tracker.ChannelEmail] = dispatch.NewEmailChannel(dispatch.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			ReplyTo:  cfg.Email.ReplyTo,
		})
	}
	if cfg.SMS.Enabled() {
		channels[tracker.ChannelSMS] = dispatch.NewSMSChannel(dispatch.SMSConfig{
			BaseURL:    cfg.SMS.BaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
		})
	}

	svc, err := service.New(
		tracker.NewRegistry(db),
		channels,
		settings,
		db,
		service.WithDataDir(cfg.System.DataDir),
		service.WithOutputDir(cfg.System.OutputDir),
		service.WithDefaultPolicy(cfg.Segment.Policy()),
		service.WithDefaultTargetLang(cfg.System.TargetLang),
	)
	if err != nil {
		log.Fatal("Failed to build service: %v", err)
	}

	if err := svc.StartScheduler(); err != nil {
		log.Fatal("Failed to start dispatch scheduler: %v", err)
	}

	server := httpapi.NewServer(svc)
	go func() {
		log.Info("HTTP API listening on %s", cfg.System.HTTPAddr)
		if err := server.ListenAndServe(cfg.System.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	svc.StopScheduler(ctx)
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown: %v", err)
	}
}

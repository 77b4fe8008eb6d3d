package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/heimdex/dsync/internal/api"
	"github.com/heimdex/dsync/internal/config"
	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/db"
	"github.com/heimdex/dsync/internal/logging"
	"github.com/heimdex/dsync/internal/mirror"
	"github.com/heimdex/dsync/internal/remote"
	"github.com/heimdex/dsync/internal/ui"
	"github.com/heimdex/dsync/internal/upload"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting dataset sync agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := mirror.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  dsync %s\n", Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Printf("  Device ID:  %s...\n", deviceID[:16])
	fmt.Println()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := remote.NewClient(remote.ClientConfig{
		APIURL:    cfg.APIURL(),
		WebURL:    cfg.WebURL(),
		APIKey:    cfg.APIKey(),
		Timeout:   cfg.HTTPTimeout(),
		RateLimit: cfg.RateLimit(),
		Metrics:   remote.NewMetrics(registry),
		Logger:    logging.WithComponent(logger, "remote"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		ds        *dataset.RemoteDataset
		mirrorSvc *mirror.Service
		runner    *mirror.Runner
	)
	if cfg.RemoteEnabled() {
		lookupCtx, lookupCancel := context.WithTimeout(ctx, cfg.HTTPTimeout())
		remoteDS, err := client.GetDataset(lookupCtx, cfg.Team(), cfg.Dataset())
		lookupCancel()
		if err != nil {
			return fmt.Errorf("failed to look up dataset %s/%s: %w", cfg.Team(), cfg.Dataset(), err)
		}

		ds = dataset.New(dataset.Config{
			API:    client,
			Info:   dataset.InfoFromRemote(cfg.Team(), *remoteDS),
			Upload: upload.Config{Workers: cfg.UploadWorkers()},
			Logger: logger,
		})
		logger.Info("remote dataset attached",
			"team", cfg.Team(),
			"dataset", ds.Slug(),
			"dataset_id", ds.ID(),
			"items", ds.Info().ItemCount,
		)

		mirrorSvc = mirror.NewService(repo, ds, logging.WithComponent(logger, "mirror"))
		runner = mirror.NewRunner(mirrorSvc, repo, cfg.SyncInterval(), logger)
		go runner.Start(ctx)
	} else {
		logger.Warn("remote dataset not configured, serving local endpoints only")
	}

	serverCfg := api.ServerConfig{
		Port:        cfg.Port(),
		Runner:      runner,
		Repository:  repo,
		Registry:    registry,
		Metrics:     api.NewMetrics(registry),
		Logger:      logger,
		StartTime:   startTime,
		DeviceID:    deviceID,
		Version:     Version,
		BaseContext: ctx,
	}
	// Typed nils must not leak into the interfaces.
	if ds != nil {
		serverCfg.Dataset = ds
	}
	if mirrorSvc != nil {
		serverCfg.Mirror = mirrorSvc
	}
	apiServer := api.NewServer(serverCfg)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		trayCfg := ui.TrayConfig{
			Context: ctx,
			Runner:  runner,
			Logger:  logger,
			OnQuit:  quit,
		}
		if ds != nil {
			trayCfg.Info = ds.Info()
		}
		if mirrorSvc != nil {
			trayCfg.Mirror = mirrorSvc
		}
		go ui.NewTray(trayCfg).Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo mirror.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo mirror.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/engine"
	"bindery/internal/history"
	"bindery/internal/ipc"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/settings"
	"bindery/internal/tts"
	"bindery/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	client := engine.NewClient(cfg.Engine.BaseURL, nil, time.Duration(cfg.Engine.RequestTimeout)*time.Second, logger)
	store := jobs.NewStore()
	ttsManager := tts.NewManager(logger)

	settingsStore, err := settings.Open(cfg.SettingsPath())
	if err != nil {
		logger.Error("open settings", logging.Error(err))
		return
	}

	historyStore, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return
	}

	wf := workflow.NewManager(cfg, client, store, settingsStore, ttsManager, historyStore, logger)

	d, err := daemon.New(cfg, client, store, wf, historyStore, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	for _, check := range d.Preflight(ctx) {
		if !check.Passed {
			logger.Warn("preflight check failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
		}
	}

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("binderyd shutting down")
}

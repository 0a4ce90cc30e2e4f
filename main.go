package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"matclass/config"
	qhttp "matclass/http"
	"matclass/logging"
	"matclass/ml"
	"matclass/monitoring"
	"matclass/session"
)

func main() {
	// 1. Load config
	configPath := config.Locate("config.yaml")
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	// 3. Config hot reload (log level only)
	var watcher *config.Watcher
	if _, err := os.Stat(configPath); err == nil {
		watcher, err = config.Watch(configPath, func(c config.Config) {
			logger.SetLevel(c.Log.Level)
		}, logger.Logger)
		if err != nil {
			logger.Warn("config watcher disabled", zap.Error(err))
		}
	}

	// 4. Services
	hub := monitoring.NewHub(logger.Named("ws"))
	go hub.Run()

	sessions, err := session.NewManager(session.ManagerConfig{
		MaxSessions:    cfg.Session.MaxSessions,
		OrderedResults: cfg.Session.OrderedResults,
		OnNew: func(s *session.Session) {
			id := s.ID
			s.Result.OnUpdate(func(o ml.Outcome) { hub.Publish(id, o) })
		},
		Logger: logger.Named("session"),
	})
	if err != nil {
		logger.Error("Failed to create session manager", zap.Error(err))
		hub.Stop()
		if watcher != nil {
			watcher.Close()
		}
		logger.Close()
		os.Exit(1)
	}

	client := ml.NewClient(cfg.Predictor.Endpoint,
		ml.WithTimeout(cfg.Predictor.Timeout),
		ml.WithLogger(logger.Named("predictor")),
	)

	// 5. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	}, qhttp.Deps{
		Sessions:  sessions,
		Predictor: client,
		Hub:       hub,
		Logger:    logger.Logger,
	})
	logger.Info("prediction endpoint", zap.String("endpoint", client.Endpoint()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	err = waitForShutdown(quit, serverErr)
	if err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}
	logger.Info("Shutting down...")

	err = multierr.Append(err, server.Stop())
	hub.Stop()
	if watcher != nil {
		err = multierr.Append(err, watcher.Close())
	}
	if err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
	}

	logger.Info("Exiting")
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

// waitForShutdown 等待退出信号或服务器异常退出，返回服务器错误
func waitForShutdown(quit <-chan os.Signal, serverErr <-chan error) error {
	select {
	case <-quit:
		return nil
	case err := <-serverErr:
		if err == nil {
			return errors.New("HTTP server stopped unexpectedly")
		}
		return err
	}
}

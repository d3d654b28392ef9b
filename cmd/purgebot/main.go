package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-purge/internal/bot"
	"chat-purge/internal/config"
	"chat-purge/internal/crash"
	"chat-purge/internal/handler"
	"chat-purge/internal/logger"
	"chat-purge/internal/metrics"
	"chat-purge/internal/service"
	"chat-purge/internal/storage"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if cfg.Database.Enabled {
		if err := storage.Initialize(cfg); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		logger.Info("Database connection established")
	} else {
		logger.Info("Database support is disabled. Journal and scan records are kept in memory.")
	}

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	botService, server, err := bot.Initialize(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize bot: %v", err)
	}

	p, err := service.NewPlatform(cfg, botService.Bot)
	if err != nil {
		log.Fatalf("Failed to connect platform %s: %v", cfg.Platform.Kind, err)
	}
	purger, err := service.New(cfg, p)
	if err != nil {
		log.Fatalf("Failed to create purger: %v", err)
	}

	// the telegram platform reads history from what the bot journals
	recorder, _ := p.(handler.MessageRecorder)
	h := handler.New(ctx, botService.Bot, purger, recorder, cfg)

	crash.SafeGoroutine("http-server", func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("HTTP server error: %v", err)
		}
	})

	// Give server time to start
	time.Sleep(500 * time.Millisecond)
	logger.Infof("HTTP server is ready, starting bot handler for platform %s...", purger.PlatformName())

	h.SetupMessageHandlers(botService.Handler)
	crash.SafeGoroutine("bot-handler", botService.Start)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)
	botService.Stop()

	logger.Info("Waiting for running scans and purges to complete...")
	done := make(chan struct{})
	go func() {
		h.WaitForHandlers()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All background jobs completed")
	case <-time.After(30 * time.Second):
		logger.Warning("Timeout waiting for background jobs, interrupting them")
		cancel()
		<-done
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server gracefully stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sevlyar/go-daemon"

	"telegram-sync-reconciler/internal/app"
	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/server"
	"telegram-sync-reconciler/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := flag.String("config", config.DefaultConfigFile, "path to YAML config")
	detach := flag.Bool("detach", false, "run in background as a daemon")
	pidFile := flag.String("pid-file", "reconciler-server.pid", "pid file used with -detach")
	logFile := flag.String("log-file", "reconciler-server.log", "log file used with -detach")
	flag.Parse()

	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Отсоединение от терминала. Родительский процесс завершается сразу.
	if *detach {
		dctx := &daemon.Context{
			PidFileName: *pidFile,
			PidFilePerm: 0o644,
			LogFileName: *logFile,
			LogFilePerm: 0o640,
			Umask:       0o027,
			Args:        os.Args,
		}
		child, err := dctx.Reborn()
		if err != nil {
			return fmt.Errorf("failed to detach: %w", err)
		}
		if child != nil {
			fmt.Printf("Server started in background, pid %d\n", child.Pid)
			return nil
		}
		defer func() { _ = dctx.Release() }()
	}

	// 3. Инициализация логгера
	logger := app.NewLogger(cfg.Logging, os.Stdout, cfg.Secrets()...)
	slog.SetDefault(logger)

	// 4. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 5. Фоновые сервисы живут до сигнала завершения
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var (
		tgClient   ports.TelegramClient
		membership ports.MembershipSource
	)
	client, err := app.StartTelegram(appCtx, cfg.TelegramAPI, logger)
	if err != nil {
		return fmt.Errorf("failed to start telegram client: %w", err)
	}
	if client != nil {
		tgClient = client
		membership = telegram.NewMembership(client, logger)
		app.MonitorHealth(appCtx, client, cfg.TelegramAPI.HealthCheckInterval, logger)
	}

	// 6. Инициализация зависимостей
	st, err := app.NewStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build api client: %w", err)
	}
	taskStore := server.NewTaskStore()
	cacheStore := cache.NewCacheStore()
	reconciler := app.NewReconciler(cfg, st, logger, cacheStore, membership)

	opts := []server.Option{server.WithLogger(logger)}
	if tgClient != nil {
		opts = append(opts, server.WithTelegramClient(tgClient))
	}
	srv, err := server.New(cfg, reconciler, taskStore, cacheStore, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 7. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("Signal received, shutting down...")
	case <-serverDone:
		return errors.New("server stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	<-serverDone
	logger.Info("HTTP server stopped")

	// В конце останавливаем клиента Telegram
	appCancel()

	logger.Info("Application exited gracefully")
	return nil
}

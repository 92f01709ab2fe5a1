// Package app собирает зависимости приложения из конфигурации.
// Используется командами cmd/reconciler и cmd/server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"telegram-sync-reconciler/internal/adapters/parser"
	"telegram-sync-reconciler/internal/adapters/source"
	"telegram-sync-reconciler/internal/adapters/threesum"
	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/core/services"
	applog "telegram-sync-reconciler/internal/log"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/rpc"
	"telegram-sync-reconciler/internal/telegram"
	"telegram-sync-reconciler/internal/usecase"
)

// ParseLevel переводит уровень логирования из конфигурации в slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создает логгер с маскировкой секретов.
func NewLogger(cfg config.Logging, out io.Writer, secrets ...string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return applog.NewMaskedLogger(handler, secrets...)
}

// ReplayStdin — значение api.replay_file, при котором записи читаются из stdin.
const ReplayStdin = "-"

var stdin io.Reader = os.Stdin

func replaySource(path string) (ports.DataSource, error) {
	if path != ReplayStdin {
		return source.NewFileSource(path), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return source.NewMemorySource(data), nil
}

// NewCaller возвращает транспорт к 3Sum: записанные ответы, если задан
// api.replay_file, иначе HTTP-шлюз.
func NewCaller(cfg *config.Config, log *slog.Logger) (ports.Caller, error) {
	if cfg.API.ReplayFile != "" {
		ds, err := replaySource(cfg.API.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("load replay file: %w", err)
		}
		rec, err := parser.NewJsonParser().Load(ds)
		if err != nil {
			return nil, fmt.Errorf("load replay file: %w", err)
		}
		log.Info("Using recorded responses", "file", cfg.API.ReplayFile, "ops", len(rec))
		return rpc.NewReplayCaller(rec), nil
	}

	return rpc.NewGateway(cfg.API.BaseURL, cfg.API.Token,
		rpc.WithTimeout(cfg.API.Timeout),
		rpc.WithLogger(log),
	), nil
}

// Stack — типизированный клиент 3Sum и сервис синхронизации поверх одного транспорта.
type Stack struct {
	API  *threesum.Client
	Sync *services.SyncService
}

// NewStack собирает Stack.
func NewStack(cfg *config.Config, log *slog.Logger) (*Stack, error) {
	caller, err := NewCaller(cfg, log)
	if err != nil {
		return nil, err
	}
	api := threesum.New(caller, threesum.WithLogger(log))
	return &Stack{
		API:  api,
		Sync: services.NewSyncService(api, services.WithSyncLogger(log)),
	}, nil
}

// RetryPolicy возвращает политику повтора синхронизации из конфигурации.
func RetryPolicy(cfg config.Sync) usecase.RetryPolicy {
	return usecase.RetryPolicy{
		Retries:         cfg.Retries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}
}

// NewReconciler создает сценарий сверки папок. cs и membership могут быть nil.
func NewReconciler(cfg *config.Config, st *Stack, log *slog.Logger, cs *cache.CacheStore, membership ports.MembershipSource) *usecase.ReconcileFolders {
	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithSyncWindow(cfg.Sync.Window),
		usecase.WithIncludeChatIDs(cfg.Reconcile.IncludeChatIDs),
		usecase.WithConcurrency(cfg.Reconcile.Concurrency),
		usecase.WithRetryPolicy(RetryPolicy(cfg.Sync)),
	}
	if cs != nil {
		opts = append(opts, usecase.WithCache(cs, cfg.Processing.CacheTTL))
	}
	if membership != nil {
		opts = append(opts, usecase.WithMembershipSource(membership))
	}
	return usecase.NewReconcileFolders(st.API, st.Sync, opts...)
}

// NewCollector создает сценарий выгрузки сообщений.
func NewCollector(cfg *config.Config, st *Stack, log *slog.Logger) *usecase.CollectMessages {
	return usecase.NewCollectMessages(st.API, st.Sync,
		usecase.WithCollectLogger(log),
		usecase.WithCollectWindow(cfg.Sync.Window),
		usecase.WithPaging(cfg.Messages.PageSize, cfg.Messages.MaxItems),
		usecase.WithCollectRetryPolicy(RetryPolicy(cfg.Sync)),
	)
}

// StartTelegram запускает MTProto-клиент и дожидается авторизации.
// Возвращает nil, если прямое подключение к Telegram выключено.
func StartTelegram(ctx context.Context, cfg config.TelegramAPI, log *slog.Logger) (*telegram.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := telegram.NewClient(telegram.Config{
		APIID:       cfg.APIID,
		APIHash:     cfg.APIHash,
		PhoneNumber: cfg.PhoneNumber,
		SessionPath: cfg.SessionFile,
	}, telegram.WithLogger(log.With(slog.String("component", "telegram"))))

	client.Start(ctx)
	if err := client.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	return client, nil
}

// MonitorHealth периодически проверяет клиента Telegram до отмены ctx.
func MonitorHealth(ctx context.Context, client ports.TelegramClient, interval time.Duration, log *slog.Logger) {
	if client == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := client.Health(ctx); err != nil {
					log.WarnContext(ctx, "Telegram client is unhealthy", "client_id", client.ID(), "error", err, "recovery_at", client.GetRecoveryTime())
				}
			}
		}
	}()
}

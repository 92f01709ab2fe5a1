package usecase

import (
	"context"
	"log/slog"
	"time"

	"telegram-sync-reconciler/internal/core/services"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

const (
	DefaultMessagePageSize = 4
	DefaultMaxMessages     = 12
)

// CollectMessages синхронизирует данные и выгружает последние сообщения постранично.
type CollectMessages struct {
	api      ports.TelegramAPI
	sync     ports.SyncTrigger
	log      *slog.Logger
	window   time.Duration
	pageSize int
	maxItems int
	retry    RetryPolicy
}

// CollectOption настраивает CollectMessages.
type CollectOption func(*CollectMessages)

// WithCollectLogger устанавливает логгер.
func WithCollectLogger(l *slog.Logger) CollectOption {
	return func(uc *CollectMessages) {
		if l != nil {
			uc.log = l
		}
	}
}

// WithPaging задает размер страницы и общий лимит сообщений (0 снимает лимит).
func WithPaging(pageSize, maxItems int) CollectOption {
	return func(uc *CollectMessages) {
		uc.pageSize = pageSize
		uc.maxItems = maxItems
	}
}

// WithCollectWindow задает окно синхронизации.
func WithCollectWindow(d time.Duration) CollectOption {
	return func(uc *CollectMessages) {
		uc.window = d
	}
}

// WithCollectRetryPolicy задает повтор синхронизации.
func WithCollectRetryPolicy(p RetryPolicy) CollectOption {
	return func(uc *CollectMessages) {
		uc.retry = p
	}
}

// NewCollectMessages создает новый экземпляр CollectMessages.
func NewCollectMessages(api ports.TelegramAPI, sync ports.SyncTrigger, opts ...CollectOption) *CollectMessages {
	uc := &CollectMessages{
		api:      api,
		sync:     sync,
		log:      slog.Default(),
		window:   services.DefaultSyncWindow,
		pageSize: DefaultMessagePageSize,
		maxItems: DefaultMaxMessages,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run выполняет синхронизацию, затем собирает сообщения до исчерпания курсора или лимита.
func (uc *CollectMessages) Run(ctx context.Context) ([]domain.Message, error) {
	if _, err := runSync(ctx, uc.sync, uc.window, uc.retry, uc.log); err != nil {
		return nil, &RunError{Phase: PhaseSync, Err: err}
	}

	fetch := func(ctx context.Context, req services.PageRequest) (domain.Page[domain.Message], error) {
		page, err := uc.api.Messages(ctx, req.Limit, req.Cursor)
		if err != nil {
			return domain.Page[domain.Message]{}, err
		}
		uc.log.InfoContext(ctx, "Retrieved messages", "count", len(page.Items))
		return page, nil
	}

	messages, err := services.RetrieveAll(ctx, fetch, uc.pageSize, uc.maxItems)
	if err != nil {
		return nil, &RunError{Phase: PhaseMessages, Err: err}
	}

	uc.log.InfoContext(ctx, "All messages fetched", "total", len(messages))
	return messages, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

// DefaultSyncWindow — окно синхронизации по умолчанию.
const DefaultSyncWindow = time.Hour

// SyncService запускает синхронизацию промежуточного сервиса с Telegram.
// Возвращает управление только после того, как сервис подтвердил завершение.
type SyncService struct {
	api ports.TelegramAPI
	log *slog.Logger
	now func() time.Time
}

var _ ports.SyncTrigger = (*SyncService)(nil)

// SyncOption настраивает SyncService.
type SyncOption func(*SyncService)

// WithSyncLogger устанавливает логгер.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSyncService создает SyncService поверх api.
func NewSyncService(api ports.TelegramAPI, opts ...SyncOption) *SyncService {
	s := &SyncService{
		api: api,
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger выполняет ровно один вызов синхронизации. Повторов не делает:
// решение о повторе принимает вызывающий код.
func (s *SyncService) Trigger(ctx context.Context, window time.Duration) (domain.SyncResult, error) {
	if window <= 0 {
		return domain.SyncResult{}, fmt.Errorf("invalid sync window %s: must be positive", window)
	}

	started := s.now()
	raw, err := s.api.SyncTelegram(ctx, window)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to sync Telegram data", "window", window, "error", err)
		return domain.SyncResult{}, fmt.Errorf("sync telegram: %w", err)
	}

	finished := s.now()
	s.log.InfoContext(ctx, "Telegram sync acknowledged", "window", window, "duration", finished.Sub(started))
	return domain.SyncResult{
		Window:     window,
		Raw:        raw,
		FinishedAt: finished,
	}, nil
}

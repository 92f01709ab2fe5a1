package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/rpc"
)

// RetryPolicy задает повтор синхронизации при транспортных сбоях.
// Retries == 0 означает ровно одну попытку.
type RetryPolicy struct {
	Retries         int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// runSync запускает синхронизацию и при необходимости повторяет ее.
// Ошибки уровня приложения не повторяются.
func runSync(ctx context.Context, trigger ports.SyncTrigger, window time.Duration, policy RetryPolicy, log *slog.Logger) (domain.SyncResult, error) {
	if policy.Retries <= 0 {
		return trigger.Trigger(ctx, window)
	}

	exp := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		exp.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		exp.MaxInterval = policy.MaxInterval
	}
	exp.MaxElapsedTime = 0

	var (
		result  domain.SyncResult
		attempt int
	)
	op := func() error {
		attempt++
		res, err := trigger.Trigger(ctx, window)
		if err == nil {
			result = res
			return nil
		}
		if !rpc.IsTransport(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WarnContext(ctx, "Sync attempt failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.Retries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return domain.SyncResult{}, err
	}
	return result, nil
}

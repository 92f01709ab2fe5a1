package ports

import (
	"context"
	"time"

	"github.com/gotd/td/tg"
)

// TelegramClient определяет публичный интерфейс MTProto-клиента,
// через который состав папок читается напрямую из Telegram.
type TelegramClient interface {
	DialogFilters(ctx context.Context) ([]tg.DialogFilterClass, error)
	Health(ctx context.Context) error
	ID() string
	Start(ctx context.Context)
	GetRecoveryTime() time.Time
}

package ports

import (
	"context"
	"encoding/json"
	"time"

	"telegram-sync-reconciler/internal/domain"
)

// CallKind определяет, как вызов передается удаленному сервису.
type CallKind int

const (
	// KindRead — запрос на чтение, аргумент уходит в query-параметр.
	KindRead CallKind = iota
	// KindMutate — мутация, аргумент уходит в тело запроса.
	KindMutate
)

func (k CallKind) String() string {
	if k == KindMutate {
		return "mutate"
	}
	return "read"
}

// Caller выполняет аутентифицированный RPC-вызов и возвращает полезную нагрузку
// из поля успеха конверта ответа.
type Caller interface {
	Call(ctx context.Context, op string, kind CallKind, payload any) (json.RawMessage, error)
}

// DialogsQuery — параметры выборки диалогов папки.
type DialogsQuery struct {
	FolderID        string
	MaxParticipants int
	MaxMessages     int
	IncludeBots     bool
	// FolderWireID, если задан, отправляется сервису вместо FolderID как есть.
	FolderWireID json.RawMessage
}

// TelegramAPI — типизированный набор операций промежуточного сервиса.
type TelegramAPI interface {
	SyncTelegram(ctx context.Context, window time.Duration) (json.RawMessage, error)
	Folders(ctx context.Context, includeChatIDs bool) ([]domain.Folder, error)
	DialogsByFolder(ctx context.Context, q DialogsQuery) ([]domain.Dialog, error)
	Messages(ctx context.Context, limit int, cursor *string) (domain.Page[domain.Message], error)
}

// SyncTrigger запускает синхронизацию и дожидается подтверждения.
type SyncTrigger interface {
	Trigger(ctx context.Context, window time.Duration) (domain.SyncResult, error)
}

// MembershipSource возвращает объявленный состав папок напрямую из Telegram,
// по идентификатору папки.
type MembershipSource interface {
	DeclaredChatIDs(ctx context.Context) (map[string][]string, error)
}

// DataSource определяет интерфейс для получения сырых данных (фикстур ответов).
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// Exporter определяет интерфейс для вывода результата сверки.
type Exporter interface {
	Export(reports []domain.ReconciliationReport) error
}

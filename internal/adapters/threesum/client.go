// Package threesum реализует типизированные операции публичного API 3Sum
// поверх произвольного ports.Caller.
package threesum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/rpc"
)

// Имена операций публичного API.
const (
	OpSyncTelegram    = "telegram.syncTelegram"
	OpFolders         = "telegram.folders"
	OpDialogsByFolder = "telegram.dialogsByFolder"
	OpMessages        = "telegram.messages"
)

// ErrInvalidWindow возвращается для неположительного окна синхронизации.
var ErrInvalidWindow = errors.New("sync window must be positive")

// Client — типизированный клиент 3Sum.
type Client struct {
	caller ports.Caller
	log    *slog.Logger
}

var _ ports.TelegramAPI = (*Client)(nil)

// Option настраивает Client.
type Option func(*Client)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New создает клиента поверх caller.
func New(caller ports.Caller, opts ...Option) *Client {
	c := &Client{
		caller: caller,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FormatWindow переводит длительность в формат окна сервиса: "1h", "30m", "2d".
func FormatWindow(window time.Duration) (string, error) {
	if window <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	day := 24 * time.Hour
	switch {
	case window%day == 0:
		return strconv.FormatInt(int64(window/day), 10) + "d", nil
	case window%time.Hour == 0:
		return strconv.FormatInt(int64(window/time.Hour), 10) + "h", nil
	case window%time.Minute == 0:
		return strconv.FormatInt(int64(window/time.Minute), 10) + "m", nil
	default:
		secs := (window + time.Second - 1) / time.Second
		return strconv.FormatInt(int64(secs), 10) + "s", nil
	}
}

// SyncTelegram просит сервис подтянуть свежие данные из Telegram за окно window.
func (c *Client) SyncTelegram(ctx context.Context, window time.Duration) (json.RawMessage, error) {
	period, err := FormatWindow(window)
	if err != nil {
		return nil, err
	}

	c.log.InfoContext(ctx, "Starting Telegram sync", "time_period", period)
	data, err := c.caller.Call(ctx, OpSyncTelegram, ports.KindMutate, map[string]string{"timePeriod": period})
	if err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "Sync completed", "response", string(data))
	return data, nil
}

// Folders возвращает папки аккаунта в порядке сервиса.
func (c *Client) Folders(ctx context.Context, includeChatIDs bool) ([]domain.Folder, error) {
	var payload any
	if includeChatIDs {
		payload = map[string]bool{"includeChatIds": true}
	}

	data, err := c.caller.Call(ctx, OpFolders, ports.KindRead, payload)
	if err != nil {
		return nil, err
	}

	var dtos []folderDTO
	if err := decode(data, &dtos); err != nil {
		return nil, decodeError(OpFolders, data, err)
	}

	folders := make([]domain.Folder, 0, len(dtos))
	for _, dto := range dtos {
		folders = append(folders, dto.toDomain())
	}
	c.log.DebugContext(ctx, "Retrieved folders", "count", len(folders))
	return folders, nil
}

// DialogsByFolder возвращает диалоги папки. Операция не пагинируется.
func (c *Client) DialogsByFolder(ctx context.Context, q ports.DialogsQuery) ([]domain.Dialog, error) {
	payload := struct {
		FolderID        json.RawMessage `json:"folderId"`
		MaxParticipants int             `json:"maxParticipants"`
		MaxMessages     int             `json:"maxMessages"`
		IncludeBots     bool            `json:"includeBots"`
	}{
		FolderID:        folderIDValue(q),
		MaxParticipants: q.MaxParticipants,
		MaxMessages:     q.MaxMessages,
		IncludeBots:     q.IncludeBots,
	}

	c.log.DebugContext(ctx, "Fetching dialogs for folder", "folder_id", q.FolderID)
	data, err := c.caller.Call(ctx, OpDialogsByFolder, ports.KindRead, payload)
	if err != nil {
		return nil, err
	}

	var dtos []dialogDTO
	if err := decode(data, &dtos); err != nil {
		return nil, decodeError(OpDialogsByFolder, data, err)
	}

	dialogs := make([]domain.Dialog, 0, len(dtos))
	for _, dto := range dtos {
		dialogs = append(dialogs, dto.toDomain())
	}
	c.log.DebugContext(ctx, "Retrieved dialogs from folder", "folder_id", q.FolderID, "count", len(dialogs))
	return dialogs, nil
}

// Messages возвращает одну страницу сообщений. Пустой cursor означает первую страницу.
func (c *Client) Messages(ctx context.Context, limit int, cursor *string) (domain.Page[domain.Message], error) {
	input := map[string]any{"limit": limit}
	if cursor != nil && *cursor != "" {
		input["cursor"] = cursorValue(*cursor)
	}

	data, err := c.caller.Call(ctx, OpMessages, ports.KindRead, input)
	if err != nil {
		return domain.Page[domain.Message]{}, err
	}

	var dto messagesPageDTO
	if err := decode(data, &dto); err != nil {
		return domain.Page[domain.Message]{}, decodeError(OpMessages, data, err)
	}

	page := dto.toDomain()
	c.log.DebugContext(ctx, "Retrieved messages", "count", len(page.Items), "has_next", !page.Done())
	return page, nil
}

// decode разбирает полезную нагрузку; null трактуется как пустой результат.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// decodeError относит неразбираемый ответ к транспортным сбоям.
func decodeError(op string, data json.RawMessage, err error) error {
	return &rpc.Error{Op: op, Class: rpc.ClassTransport, Payload: data, Err: fmt.Errorf("failed to decode response: %w", err)}
}

// folderIDValue возвращает идентификатор папки в том виде, в каком его отдал сервис.
// Без исходного токена идентификатор уходит строкой.
func folderIDValue(q ports.DialogsQuery) json.RawMessage {
	if len(q.FolderWireID) > 0 && json.Valid(q.FolderWireID) {
		return q.FolderWireID
	}
	b, _ := json.Marshal(q.FolderID)
	return b
}

// cursorValue отправляет курсор исходным JSON-токеном. Курсор, собранный
// вручную и не являющийся JSON, уходит строкой.
func cursorValue(cursor string) any {
	if raw := json.RawMessage(cursor); json.Valid(raw) {
		return raw
	}
	return cursor
}

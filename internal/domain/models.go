package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrEmptyResult сигнализирует, что у аккаунта нет ни одной папки.
// Это нарушение предусловия, а не временный сбой.
var ErrEmptyResult = errors.New("telegram account does not have any folders")

// DialogType — тип диалога на стороне Telegram.
type DialogType string

const (
	DialogTypeDirect  DialogType = "direct"
	DialogTypeGroup   DialogType = "group"
	DialogTypeChannel DialogType = "channel"
	DialogTypeBot     DialogType = "bot"
)

// Folder представляет папку Telegram, как ее видит промежуточный сервис.
type Folder struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	DeclaredDialogCount int    `json:"declared_dialog_count"`
	// WireID — идентификатор в том JSON-виде, в каком его вернул сервис.
	// Обратно в сервис уходит именно он.
	WireID json.RawMessage `json:"-"`
	// DeclaredChatIDs равен nil, если список не запрашивался.
	// Пустой, но не nil срез означает "папка объявлена пустой".
	DeclaredChatIDs []string `json:"declared_chat_ids,omitempty"`
}

// HasDeclaredChatIDs сообщает, известен ли явный состав папки.
func (f Folder) HasDeclaredChatIDs() bool {
	return f.DeclaredChatIDs != nil
}

// Participant представляет участника диалога или отправителя сообщения.
type Participant struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// Message представляет одно сообщение.
type Message struct {
	ID        string      `json:"id,omitempty"`
	ChatID    string      `json:"chat_id,omitempty"`
	Text      string      `json:"text"`
	Sender    Participant `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
}

// Dialog представляет один разговор с участниками и последними сообщениями.
type Dialog struct {
	ChatID       string        `json:"chat_id"`
	Title        string        `json:"title"`
	Type         DialogType    `json:"type"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

// Page — одна страница курсорной выборки.
// Конец данных определяется только отсутствием NextCursor.
// Курсор непрозрачен: адаптер хранит в нем исходный JSON-токен сервиса.
type Page[T any] struct {
	Items      []T
	NextCursor *string
}

// Done сообщает, что за этой страницей больше ничего нет.
func (p Page[T]) Done() bool {
	return p.NextCursor == nil
}

// SyncResult — подтверждение завершения синхронизации.
// Содержимое ответа сохраняется только для диагностики.
type SyncResult struct {
	Window     time.Duration `json:"window"`
	Raw        []byte        `json:"-"`
	FinishedAt time.Time     `json:"finished_at"`
}

// ReconciliationReport — результат сверки одной папки.
type ReconciliationReport struct {
	FolderID      string `json:"folder_id"`
	Title         string `json:"title"`
	ExpectedCount int    `json:"expected_count"`
	ActualCount   int    `json:"actual_count"`
	// MissingChatIDs — точный сигнал: объявленные, но не полученные чаты.
	MissingChatIDs []string `json:"missing_chat_ids"`
	// ExtraChatIDs — полученные чаты вне объявленного состава.
	ExtraChatIDs []string `json:"extra_chat_ids"`
	// CountDelta = ExpectedCount - ActualCount. Слабый сигнал, возможны ложные расхождения
	// из-за дублей и объединенных записей на стороне платформы.
	CountDelta int `json:"count_delta"`
	// MembershipKnown равен false, если состав папки не был известен и
	// MissingChatIDs пуст по определению.
	MembershipKnown bool `json:"membership_known"`
}

// HasDiscrepancy сообщает, есть ли в отчете хоть какое-то расхождение.
func (r ReconciliationReport) HasDiscrepancy() bool {
	return len(r.MissingChatIDs) > 0 || len(r.ExtraChatIDs) > 0 || r.CountDelta != 0
}

package threesum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-sync-reconciler/internal/domain"
)

// flexID принимает идентификатор как JSON-строку или число.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// wireToken хранит значение и как строку, и как исходный JSON-токен,
// чтобы вернуть его сервису в том же виде.
type wireToken struct {
	text string
	raw  json.RawMessage
}

func (t *wireToken) UnmarshalJSON(b []byte) error {
	var id flexID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	t.text = string(id)
	t.raw = nil
	if id != "" {
		t.raw = append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	}
	return nil
}

// flexTime принимает время как unix-секунды или строку RFC 3339.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = flexTime(time.Time{})
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = flexTime(time.Time{})
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*t = flexTime(parsed.UTC())
		return nil
	}
	sec, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unix timestamp %s: %w", b, err)
	}
	*t = flexTime(time.Unix(sec, 0).UTC())
	return nil
}

type folderDTO struct {
	ID          wireToken `json:"id"`
	Title       string    `json:"title"`
	DialogCount *int      `json:"dialogCount"`
	ChatIDs     []flexID  `json:"chatIds"`
}

func (f folderDTO) toDomain() domain.Folder {
	folder := domain.Folder{
		ID:     f.ID.text,
		WireID: f.ID.raw,
		Title:  f.Title,
	}
	if f.ChatIDs != nil {
		folder.DeclaredChatIDs = make([]string, 0, len(f.ChatIDs))
		for _, id := range f.ChatIDs {
			if id != "" {
				folder.DeclaredChatIDs = append(folder.DeclaredChatIDs, string(id))
			}
		}
	}
	switch {
	case f.DialogCount != nil:
		folder.DeclaredDialogCount = *f.DialogCount
	case folder.DeclaredChatIDs != nil:
		folder.DeclaredDialogCount = len(folder.DeclaredChatIDs)
	}
	return folder
}

type participantDTO struct {
	ID       flexID `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	IsBot    bool   `json:"isBot"`
}

func (p participantDTO) toDomain() domain.Participant {
	return domain.Participant{
		ID:       string(p.ID),
		Name:     p.Name,
		Username: p.Username,
		IsBot:    p.IsBot,
	}
}

type messageDTO struct {
	ID          flexID         `json:"id"`
	ChatID      flexID         `json:"chatId"`
	MessageText string         `json:"messageText"`
	Sender      participantDTO `json:"sender"`
	Date        flexTime       `json:"date"`
	Timestamp   flexTime       `json:"timestamp"`
}

func (m messageDTO) toDomain() domain.Message {
	ts := time.Time(m.Date)
	if ts.IsZero() {
		ts = time.Time(m.Timestamp)
	}
	return domain.Message{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		Text:      m.MessageText,
		Sender:    m.Sender.toDomain(),
		Timestamp: ts,
	}
}

type dialogDTO struct {
	Dialog struct {
		ID     flexID `json:"id"`
		ChatID flexID `json:"chatId"`
		Title  string `json:"title"`
		Type   string `json:"type"`
	} `json:"dialog"`
	Participants []participantDTO `json:"participants"`
	Messages     []messageDTO     `json:"messages"`
}

func (d dialogDTO) toDomain() domain.Dialog {
	chatID := d.Dialog.ChatID
	if chatID == "" {
		chatID = d.Dialog.ID
	}

	dialog := domain.Dialog{
		ChatID:       string(chatID),
		Title:        d.Dialog.Title,
		Type:         domain.DialogType(strings.ToLower(d.Dialog.Type)),
		Participants: make([]domain.Participant, 0, len(d.Participants)),
		Messages:     make([]domain.Message, 0, len(d.Messages)),
	}
	for _, p := range d.Participants {
		dialog.Participants = append(dialog.Participants, p.toDomain())
	}
	for _, m := range d.Messages {
		msg := m.toDomain()
		if msg.ChatID == "" {
			msg.ChatID = dialog.ChatID
		}
		dialog.Messages = append(dialog.Messages, msg)
	}
	return dialog
}

type messagesPageDTO struct {
	Messages   []messageDTO `json:"messages"`
	NextCursor *wireToken   `json:"nextCursor"`
}

func (p messagesPageDTO) toDomain() domain.Page[domain.Message] {
	page := domain.Page[domain.Message]{
		Items: make([]domain.Message, 0, len(p.Messages)),
	}
	for _, m := range p.Messages {
		page.Items = append(page.Items, m.toDomain())
	}
	// null и пустая строка означают конец выборки.
	if p.NextCursor != nil && p.NextCursor.text != "" {
		cursor := string(p.NextCursor.raw)
		page.NextCursor = &cursor
	}
	return page
}

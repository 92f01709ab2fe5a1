package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gotd/td/tg"

	"telegram-sync-reconciler/internal/ports"
)

// filterLister — часть клиента, нужная для чтения папок.
type filterLister interface {
	DialogFilters(ctx context.Context) ([]tg.DialogFilterClass, error)
}

// Membership возвращает явный состав папок, прочитанный из Telegram.
type Membership struct {
	client filterLister
	log    *slog.Logger
}

var _ ports.MembershipSource = (*Membership)(nil)

// NewMembership создает источник состава папок поверх MTProto-клиента.
func NewMembership(client filterLister, log *slog.Logger) *Membership {
	if log == nil {
		log = slog.Default()
	}
	return &Membership{client: client, log: log}
}

// DeclaredChatIDs возвращает идентификаторы чатов по идентификатору папки.
// Папки, состав которых задан категориями (контакты, группы, боты и т.п.),
// в результат не попадают: их точный состав неизвестен.
func (m *Membership) DeclaredChatIDs(ctx context.Context) (map[string][]string, error) {
	filters, err := m.client.DialogFilters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dialog filters: %w", err)
	}

	result := make(map[string][]string, len(filters))
	for _, f := range filters {
		switch filter := f.(type) {
		case *tg.DialogFilter:
			if hasCategories(filter) {
				m.log.DebugContext(ctx, "Skipping category-based folder", "folder_id", filter.ID)
				continue
			}
			result[strconv.Itoa(filter.ID)] = collectChatIDs(filter.PinnedPeers, filter.IncludePeers)
		case *tg.DialogFilterChatlist:
			result[strconv.Itoa(filter.ID)] = collectChatIDs(filter.PinnedPeers, filter.IncludePeers)
		}
	}

	m.log.InfoContext(ctx, "Folder membership loaded from telegram", "folders", len(result))
	return result, nil
}

func hasCategories(f *tg.DialogFilter) bool {
	return f.Contacts || f.NonContacts || f.Groups || f.Broadcasts || f.Bots
}

// collectChatIDs объединяет закрепленные и включенные чаты без повторов.
func collectChatIDs(lists ...[]tg.InputPeerClass) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, peers := range lists {
		for _, p := range peers {
			id, ok := PeerChatID(p)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// PeerChatID переводит InputPeer в идентификатор чата в формате Bot API:
// пользователь как есть, группа с минусом, канал с префиксом -100.
func PeerChatID(p tg.InputPeerClass) (string, bool) {
	switch peer := p.(type) {
	case *tg.InputPeerUser:
		return strconv.FormatInt(peer.UserID, 10), true
	case *tg.InputPeerUserFromMessage:
		return strconv.FormatInt(peer.UserID, 10), true
	case *tg.InputPeerChat:
		return "-" + strconv.FormatInt(peer.ChatID, 10), true
	case *tg.InputPeerChannel:
		return "-100" + strconv.FormatInt(peer.ChannelID, 10), true
	case *tg.InputPeerChannelFromMessage:
		return "-100" + strconv.FormatInt(peer.ChannelID, 10), true
	default:
		return "", false
	}
}

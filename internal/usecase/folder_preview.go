package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

// Параметры предпросмотра: участники и несколько последних сообщений, без ботов.
const (
	PreviewMaxParticipants = 50
	PreviewMaxMessages     = 3
)

// Preview — папка и ее диалоги с примерами сообщений.
type Preview struct {
	Folder  domain.Folder   `json:"folder"`
	Folders []domain.Folder `json:"-"`
	Dialogs []domain.Dialog `json:"dialogs"`
}

// FolderPreview показывает содержимое одной папки.
type FolderPreview struct {
	api ports.TelegramAPI
	log *slog.Logger
}

// NewFolderPreview создает новый экземпляр FolderPreview.
func NewFolderPreview(api ports.TelegramAPI, log *slog.Logger) *FolderPreview {
	if log == nil {
		log = slog.Default()
	}
	return &FolderPreview{api: api, log: log}
}

// Run получает список папок и диалоги папки с порядковым номером folderIndex (с нуля).
func (uc *FolderPreview) Run(ctx context.Context, folderIndex int) (Preview, error) {
	folders, err := uc.api.Folders(ctx, false)
	if err != nil {
		return Preview{}, &RunError{Phase: PhaseFolders, Err: err}
	}
	if len(folders) == 0 {
		return Preview{}, emptyFoldersError()
	}
	if folderIndex < 0 || folderIndex >= len(folders) {
		return Preview{}, &RunError{
			Phase: PhaseFolders,
			Err:   fmt.Errorf("%w: %d of %d", ErrFolderIndex, folderIndex, len(folders)),
		}
	}

	folder := folders[folderIndex]
	uc.log.InfoContext(ctx, "Using folder", "folder_id", folder.ID, "title", folder.Title)

	dialogs, err := uc.api.DialogsByFolder(ctx, ports.DialogsQuery{
		FolderID:        folder.ID,
		FolderWireID:    folder.WireID,
		MaxParticipants: PreviewMaxParticipants,
		MaxMessages:     PreviewMaxMessages,
		IncludeBots:     false,
	})
	if err != nil {
		return Preview{}, &RunError{Phase: PhaseDialogs, FolderID: folder.ID, Err: err}
	}
	uc.log.InfoContext(ctx, "Retrieved dialogs from folder", "folder_id", folder.ID, "count", len(dialogs))

	return Preview{Folder: folder, Folders: folders, Dialogs: dialogs}, nil
}

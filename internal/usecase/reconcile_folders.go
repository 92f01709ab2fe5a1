package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/core/services"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/ports"
)

// DefaultFolderLimit — сколько папок сверяется по умолчанию.
const DefaultFolderLimit = 5

// singlePageSize передается одностраничной выборке и ею не используется.
const singlePageSize = 1

// reconcileQuery — параметры выборки диалогов для сверки: нужен только состав,
// без участников и сообщений, боты включены.
func reconcileQuery(folder domain.Folder) ports.DialogsQuery {
	return ports.DialogsQuery{
		FolderID:        folder.ID,
		FolderWireID:    folder.WireID,
		MaxParticipants: 0,
		MaxMessages:     0,
		IncludeBots:     true,
	}
}

// ReconcileFolders инкапсулирует сверку папок: синхронизация, список папок,
// получение диалогов каждой папки и сравнение с объявленным составом.
type ReconcileFolders struct {
	api        ports.TelegramAPI
	sync       ports.SyncTrigger
	membership ports.MembershipSource
	cacheStore *cache.CacheStore
	log        *slog.Logger

	window         time.Duration
	includeChatIDs bool
	concurrency    int
	retry          RetryPolicy
	cacheTTL       time.Duration
}

// Option настраивает ReconcileFolders.
type Option func(*ReconcileFolders)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(uc *ReconcileFolders) {
		if l != nil {
			uc.log = l
		}
	}
}

// WithSyncWindow задает окно синхронизации.
func WithSyncWindow(d time.Duration) Option {
	return func(uc *ReconcileFolders) {
		uc.window = d
	}
}

// WithIncludeChatIDs включает запрос объявленного состава папок.
func WithIncludeChatIDs(v bool) Option {
	return func(uc *ReconcileFolders) {
		uc.includeChatIDs = v
	}
}

// WithConcurrency задает число папок, обрабатываемых одновременно.
func WithConcurrency(n int) Option {
	return func(uc *ReconcileFolders) {
		if n > 0 {
			uc.concurrency = n
		}
	}
}

// WithRetryPolicy задает повтор синхронизации.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(uc *ReconcileFolders) {
		uc.retry = p
	}
}

// WithMembershipSource подключает источник состава папок напрямую из Telegram.
func WithMembershipSource(m ports.MembershipSource) Option {
	return func(uc *ReconcileFolders) {
		uc.membership = m
	}
}

// WithCache сохраняет результаты успешных прогонов в cacheStore.
func WithCache(cs *cache.CacheStore, ttl time.Duration) Option {
	return func(uc *ReconcileFolders) {
		uc.cacheStore = cs
		uc.cacheTTL = ttl
	}
}

// NewReconcileFolders создает новый экземпляр ReconcileFolders.
func NewReconcileFolders(api ports.TelegramAPI, sync ports.SyncTrigger, opts ...Option) *ReconcileFolders {
	uc := &ReconcileFolders{
		api:            api,
		sync:           sync,
		log:            slog.Default(),
		window:         services.DefaultSyncWindow,
		includeChatIDs: true,
		concurrency:    1,
		cacheTTL:       time.Hour,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run сверяет первые folderLimit папок. Отчеты возвращаются в порядке списка папок.
// Любой сбой прерывает прогон целиком: частичные отчеты не возвращаются.
func (uc *ReconcileFolders) Run(ctx context.Context, folderLimit int) ([]domain.ReconciliationReport, error) {
	if folderLimit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFolderLimit, folderLimit)
	}

	if _, err := runSync(ctx, uc.sync, uc.window, uc.retry, uc.log); err != nil {
		return nil, &RunError{Phase: PhaseSync, Err: err}
	}

	uc.log.InfoContext(ctx, "Fetching Telegram folders")
	folders, err := uc.api.Folders(ctx, uc.includeChatIDs)
	if err != nil {
		return nil, &RunError{Phase: PhaseFolders, Err: err}
	}
	if len(folders) == 0 {
		return nil, emptyFoldersError()
	}
	uc.log.InfoContext(ctx, "Retrieved folders", "count", len(folders), "limit", folderLimit)

	if len(folders) > folderLimit {
		folders = folders[:folderLimit]
	}

	if err := uc.fillMembership(ctx, folders); err != nil {
		return nil, &RunError{Phase: PhaseMembership, Err: err}
	}

	reports, err := uc.reconcileAll(ctx, folders)
	if err != nil {
		return nil, err
	}

	if uc.cacheStore != nil {
		uc.cacheStore.Put(cache.LatestKey, reports, uc.cacheTTL)
		uc.cacheStore.Put(cache.FolderLimitKey(folderLimit), reports, uc.cacheTTL)
	}

	uc.log.InfoContext(ctx, "Reconciliation finished", "folders", len(reports))
	return reports, nil
}

// fillMembership дополняет папки без объявленного состава данными из Telegram.
func (uc *ReconcileFolders) fillMembership(ctx context.Context, folders []domain.Folder) error {
	if uc.membership == nil {
		return nil
	}

	needed := false
	for _, f := range folders {
		if !f.HasDeclaredChatIDs() {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	declared, err := uc.membership.DeclaredChatIDs(ctx)
	if err != nil {
		return err
	}

	for i := range folders {
		if folders[i].HasDeclaredChatIDs() {
			continue
		}
		ids, ok := declared[folders[i].ID]
		if !ok {
			uc.log.WarnContext(ctx, "Folder membership not found in Telegram", "folder_id", folders[i].ID)
			continue
		}
		folders[i].DeclaredChatIDs = append([]string{}, ids...)
		if folders[i].DeclaredDialogCount == 0 {
			folders[i].DeclaredDialogCount = len(ids)
		}
	}
	return nil
}

func (uc *ReconcileFolders) reconcileAll(ctx context.Context, folders []domain.Folder) ([]domain.ReconciliationReport, error) {
	reports := make([]domain.ReconciliationReport, len(folders))

	if uc.concurrency <= 1 {
		for i, folder := range folders {
			report, err := uc.reconcileOne(ctx, folder)
			if err != nil {
				return nil, err
			}
			reports[i] = report
		}
		return reports, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, folder := range folders {
		g.Go(func() error {
			report, err := uc.reconcileOne(gctx, folder)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (uc *ReconcileFolders) reconcileOne(ctx context.Context, folder domain.Folder) (domain.ReconciliationReport, error) {
	uc.log.InfoContext(ctx, "Fetching dialogs for folder", "folder_id", folder.ID, "title", folder.Title)

	fetch := services.SinglePage(func(ctx context.Context) ([]domain.Dialog, error) {
		return uc.api.DialogsByFolder(ctx, reconcileQuery(folder))
	})
	dialogs, err := services.RetrieveAll(ctx, fetch, singlePageSize, 0)
	if err != nil {
		return domain.ReconciliationReport{}, &RunError{Phase: PhaseDialogs, FolderID: folder.ID, Err: err}
	}

	report := services.Reconcile(folder, dialogs)
	uc.log.InfoContext(ctx, "Folder reconciled",
		"folder_id", report.FolderID,
		"expected", report.ExpectedCount,
		"actual", report.ActualCount,
		"missing", len(report.MissingChatIDs),
		"delta", report.CountDelta,
	)
	return report, nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/usecase"
)

// TaskTTL задает время хранения записи о прогоне.
const TaskTTL = 24 * time.Hour

// maxRequestBody ограничивает размер тела POST /api/v1/runs.
const maxRequestBody = 1 << 10

// Reconciler определяет интерфейс варианта использования, выполняющего сверку папок.
type Reconciler interface {
	Run(ctx context.Context, folderLimit int) ([]domain.ReconciliationReport, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	reconciler Reconciler
	tgClient   ports.TelegramClient
	log        *slog.Logger

	// baseCtx отменяется при Shutdown и останавливает фоновые прогоны и тикеры.
	baseCtx context.Context
	cancel  context.CancelFunc
	runs    sync.WaitGroup
}

// Option настраивает Server.
type Option func(*Server)

// WithLogger устанавливает логгер сервера.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTelegramClient подключает MTProto-клиент к проверке работоспособности.
func WithTelegramClient(c ports.TelegramClient) Option {
	return func(s *Server) {
		s.tgClient = c
	}
}

// runRequest — тело запроса на запуск сверки.
type runRequest struct {
	FolderLimit *int `json:"folder_limit"`
}

// runResponse — статус прогона.
type runResponse struct {
	RunID        string     `json:"run_id"`
	Status       TaskStatus `json:"status"`
	FolderLimit  int        `json:"folder_limit"`
	ErrorPhase   string     `json:"error_phase,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// reportsResponse — отчеты прогона или последние закешированные отчеты.
type reportsResponse struct {
	RunID       string                        `json:"run_id,omitempty"`
	StoredAt    *time.Time                    `json:"stored_at,omitempty"`
	Total       int                           `json:"total"`
	Discrepancy int                           `json:"with_discrepancies"`
	Reports     []domain.ReconciliationReport `json:"reports"`
}

// New создает новый экземпляр Server
func New(cfg *config.Config, reconciler Reconciler, taskStore *TaskStore, cacheStore *cache.CacheStore, opts ...Option) (*Server, error) {
	if cfg == nil || reconciler == nil || taskStore == nil || cacheStore == nil {
		return nil, errors.New("server: все зависимости обязательны")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		reconciler: reconciler,
		log:        slog.Default(),
		baseCtx:    ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Тикеры очистки живут до Shutdown.
	if interval := cfg.Server.CleanupInterval; interval > 0 {
		s.taskStore.StartCleanupTicker(ctx, interval)
		s.cacheStore.StartCleanupTicker(ctx, interval)
	}

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/reports", s.handleRunReports)
		r.Get("/reports/latest", s.handleLatestReports)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}

	if s.tgClient != nil {
		if err := s.tgClient.Health(r.Context()); err != nil {
			resp["telegram"] = "unavailable"
			if until := s.tgClient.GetRecoveryTime(); !until.IsZero() {
				resp["telegram_recovery_at"] = until.UTC().Format(time.RFC3339)
			}
		} else {
			resp["telegram"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreateRun запускает сверку в фоне и сразу возвращает идентификатор прогона.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	folderLimit := s.cfg.Reconcile.FolderLimit

	var req runRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
	switch {
	case errors.Is(err, io.EOF):
		// Пустое тело: используется лимит из конфигурации.
	case err != nil:
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	case req.FolderLimit != nil:
		folderLimit = *req.FolderLimit
	}

	if folderLimit <= 0 {
		http.Error(w, "folder_limit должен быть положительным", http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	s.taskStore.CreateTask(runID, folderLimit, TaskTTL)

	s.runs.Add(1)
	go s.execute(runID, folderLimit)

	s.log.InfoContext(r.Context(), "Reconciliation run accepted", "run_id", runID, "folder_limit", folderLimit)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) execute(runID string, folderLimit int) {
	defer s.runs.Done()

	_ = s.taskStore.UpdateTaskStatus(runID, TaskStatusProcessing)

	ctx := s.baseCtx
	if timeout := s.cfg.Processing.TaskTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	reports, err := s.reconciler.Run(ctx, folderLimit)
	if err != nil {
		phase := string(usecase.PhaseOf(err))
		s.log.ErrorContext(ctx, "Reconciliation run failed", "run_id", runID, "phase", phase, "error", err)
		_ = s.taskStore.UpdateTaskError(runID, phase, err.Error())
		return
	}

	s.log.InfoContext(ctx, "Reconciliation run completed", "run_id", runID, "folders", len(reports))
	_ = s.taskStore.UpdateTaskResult(runID, reports)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Прогон не найден", http.StatusNotFound)
		return
	}

	resp := runResponse{
		RunID:        task.ID,
		Status:       task.Status,
		FolderLimit:  task.FolderLimit,
		ErrorPhase:   task.ErrorPhase,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
	}
	if !task.FinishedAt.IsZero() {
		finished := task.FinishedAt
		resp.FinishedAt = &finished
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunReports(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Прогон не найден", http.StatusNotFound)
		return
	}

	if task.Status != TaskStatusCompleted {
		http.Error(w, "Прогон не завершен", http.StatusBadRequest)
		return
	}

	resp := newReportsResponse(task.Reports)
	resp.RunID = task.ID
	writeJSON(w, http.StatusOK, resp)
}

// handleLatestReports отдает последние отчеты из кеша.
// Параметр folder_limit выбирает отчеты прогона с конкретным лимитом.
func (s *Server) handleLatestReports(w http.ResponseWriter, r *http.Request) {
	key := cache.LatestKey
	if v := r.URL.Query().Get("folder_limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "folder_limit должен быть положительным числом", http.StatusBadRequest)
			return
		}
		key = cache.FolderLimitKey(limit)
	}

	item, found := s.cacheStore.Get(key)
	if !found {
		http.Error(w, "Отчеты еще не сформированы", http.StatusNotFound)
		return
	}

	resp := newReportsResponse(item.Reports)
	storedAt := item.StoredAt
	resp.StoredAt = &storedAt
	writeJSON(w, http.StatusOK, resp)
}

func newReportsResponse(reports []domain.ReconciliationReport) reportsResponse {
	if reports == nil {
		reports = []domain.ReconciliationReport{}
	}
	resp := reportsResponse{Total: len(reports), Reports: reports}
	for _, rep := range reports {
		if rep.HasDiscrepancy() {
			resp.Discrepancy++
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Не удалось записать ответ", "error", err)
	}
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера, затем отменяет
// незавершенные прогоны и дожидается их остановки.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	err := s.HTTPServer.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

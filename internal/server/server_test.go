package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/usecase"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Run(ctx context.Context, folderLimit int) ([]domain.ReconciliationReport, error) {
	args := m.Called(ctx, folderLimit)
	res, _ := args.Get(0).([]domain.ReconciliationReport)
	return res, args.Error(1)
}

// stubTelegram реализует ports.TelegramClient для проверки /health.
type stubTelegram struct {
	healthErr error
	until     time.Time
}

func (s stubTelegram) DialogFilters(context.Context) ([]tg.DialogFilterClass, error) { return nil, nil }
func (s stubTelegram) Health(context.Context) error                                 { return s.healthErr }
func (s stubTelegram) ID() string                                                   { return "stub" }
func (s stubTelegram) Start(context.Context)                                        {}
func (s stubTelegram) GetRecoveryTime() time.Time                                   { return s.until }

func newTestServer(t *testing.T, rec Reconciler, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{
		Server:    config.Server{Host: "localhost", Port: 8080},
		Reconcile: config.Reconcile{FolderLimit: 5},
	}
	srv, err := New(cfg, rec, NewTaskStore(), cache.NewCacheStore(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.HTTPServer.Handler.ServeHTTP(rr, req)
	return rr
}

func waitStatus(t *testing.T, srv *Server, runID string, want TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		task, err := srv.taskStore.GetTask(runID)
		return err == nil && task.Status == want
	}, time.Second, 5*time.Millisecond)
}

func TestServer_Health(t *testing.T) {
	t.Run("без клиента Telegram", func(t *testing.T) {
		srv := newTestServer(t, new(mockReconciler))

		rr := serve(srv, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ok", resp["status"])
		assert.NotContains(t, resp, "telegram")
	})

	t.Run("клиент в FLOOD_WAIT", func(t *testing.T) {
		until := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		srv := newTestServer(t, new(mockReconciler), WithTelegramClient(stubTelegram{healthErr: errors.New("flood"), until: until}))

		rr := serve(srv, http.MethodGet, "/health", "")
		var resp map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "unavailable", resp["telegram"])
		assert.Equal(t, "2030-01-01T00:00:00Z", resp["telegram_recovery_at"])
	})
}

func TestServer_RunLifecycle(t *testing.T) {
	rec := new(mockReconciler)
	reports := []domain.ReconciliationReport{
		{FolderID: "1", ExpectedCount: 2, ActualCount: 2, MissingChatIDs: []string{}, ExtraChatIDs: []string{}},
		{FolderID: "2", ExpectedCount: 3, ActualCount: 1, CountDelta: 2, MissingChatIDs: []string{"7"}, ExtraChatIDs: []string{}},
	}
	rec.On("Run", mock.Anything, 3).Return(reports, nil).Once()
	srv := newTestServer(t, rec)

	rr := serve(srv, http.MethodPost, "/api/v1/runs", `{"folder_limit":3}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var created map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	runID := created["run_id"]
	require.NotEmpty(t, runID)

	waitStatus(t, srv, runID, TaskStatusCompleted)

	rr = serve(srv, http.MethodGet, "/api/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status runResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, TaskStatusCompleted, status.Status)
	assert.Equal(t, 3, status.FolderLimit)
	assert.NotNil(t, status.FinishedAt)

	rr = serve(srv, http.MethodGet, "/api/v1/runs/"+runID+"/reports", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got reportsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Discrepancy)
	assert.Equal(t, reports, got.Reports)

	rec.AssertExpectations(t)
}

func TestServer_CreateRun(t *testing.T) {
	t.Run("пустое тело использует лимит из конфигурации", func(t *testing.T) {
		rec := new(mockReconciler)
		rec.On("Run", mock.Anything, 5).Return([]domain.ReconciliationReport{}, nil).Once()
		srv := newTestServer(t, rec)

		rr := serve(srv, http.MethodPost, "/api/v1/runs", "")
		require.Equal(t, http.StatusAccepted, rr.Code)

		var created map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
		waitStatus(t, srv, created["run_id"], TaskStatusCompleted)
		rec.AssertExpectations(t)
	})

	t.Run("некорректное тело", func(t *testing.T) {
		srv := newTestServer(t, new(mockReconciler))
		rr := serve(srv, http.MethodPost, "/api/v1/runs", `{"folder_limit":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("неположительный лимит", func(t *testing.T) {
		rec := new(mockReconciler)
		srv := newTestServer(t, rec)
		rr := serve(srv, http.MethodPost, "/api/v1/runs", `{"folder_limit":0}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rec.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})
}

func TestServer_FailedRun(t *testing.T) {
	rec := new(mockReconciler)
	runErr := &usecase.RunError{Phase: usecase.PhaseDialogs, FolderID: "2", Err: errors.New("boom")}
	rec.On("Run", mock.Anything, 5).Return(nil, runErr).Once()
	srv := newTestServer(t, rec)

	rr := serve(srv, http.MethodPost, "/api/v1/runs", `{"folder_limit":5}`)
	var created map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	runID := created["run_id"]

	waitStatus(t, srv, runID, TaskStatusFailed)

	rr = serve(srv, http.MethodGet, "/api/v1/runs/"+runID, "")
	var status runResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, string(usecase.PhaseDialogs), status.ErrorPhase)
	assert.Contains(t, status.ErrorMessage, "boom")

	rr = serve(srv, http.MethodGet, "/api/v1/runs/"+runID+"/reports", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_RunTimeout(t *testing.T) {
	rec := new(mockReconciler)
	rec.On("Run", mock.Anything, 5).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()
	srv := newTestServer(t, rec)
	srv.cfg.Processing.TaskTimeout = 20 * time.Millisecond

	rr := serve(srv, http.MethodPost, "/api/v1/runs", "")
	var created map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))

	waitStatus(t, srv, created["run_id"], TaskStatusFailed)
}

func TestServer_RunNotFound(t *testing.T) {
	srv := newTestServer(t, new(mockReconciler))

	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/v1/runs/non-existent", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/v1/runs/non-existent/reports", "").Code)
}

func TestServer_LatestReports(t *testing.T) {
	srv := newTestServer(t, new(mockReconciler))

	t.Run("кеш пуст", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/v1/reports/latest", "").Code)
	})

	reports := []domain.ReconciliationReport{{FolderID: "9", ExpectedCount: 1, ActualCount: 1, MissingChatIDs: []string{}, ExtraChatIDs: []string{}}}
	srv.cacheStore.Put(cache.LatestKey, reports, time.Minute)
	srv.cacheStore.Put(cache.FolderLimitKey(2), reports, time.Minute)

	t.Run("последние отчеты", func(t *testing.T) {
		rr := serve(srv, http.MethodGet, "/api/v1/reports/latest", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var got reportsResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, reports, got.Reports)
		assert.NotNil(t, got.StoredAt)
	})

	t.Run("по лимиту папок", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/reports/latest?folder_limit=2", "").Code)
		assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/v1/reports/latest?folder_limit=3", "").Code)
		assert.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/api/v1/reports/latest?folder_limit=x", "").Code)
	})
}

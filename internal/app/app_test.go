package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-sync-reconciler/internal/cache"
	"telegram-sync-reconciler/internal/pkg/config"
	"telegram-sync-reconciler/internal/rpc"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replayConfig() *config.Config {
	return &config.Config{
		API:       config.API{ReplayFile: "testdata/replay.json"},
		Sync:      config.Sync{Window: time.Hour},
		Reconcile: config.Reconcile{FolderLimit: 5, IncludeChatIDs: true, Concurrency: 1},
		Messages:  config.Messages{PageSize: 4, MaxItems: 12},
		Processing: config.Processing{
			CacheTTL: time.Minute,
		},
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	t.Run("секреты маскируются", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(config.Logging{Level: "info", Format: "json"}, &buf, "super-secret-token")

		log.Info("request", "header", "public-api-token: super-secret-token")

		assert.NotContains(t, buf.String(), "super-secret-token")
		assert.Contains(t, buf.String(), `"msg":"request"`)
	})

	t.Run("текстовый формат и уровень", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(config.Logging{Level: "warn", Format: "text"}, &buf)

		log.Info("hidden")
		log.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func withStdin(t *testing.T, r io.Reader) {
	t.Helper()
	prev := stdin
	stdin = r
	t.Cleanup(func() { stdin = prev })
}

func TestNewCaller(t *testing.T) {
	t.Run("файл записанных ответов", func(t *testing.T) {
		caller, err := NewCaller(replayConfig(), quietLogger())
		require.NoError(t, err)
		assert.IsType(t, &rpc.ReplayCaller{}, caller)
	})

	t.Run("файл не найден", func(t *testing.T) {
		cfg := replayConfig()
		cfg.API.ReplayFile = "testdata/missing.json"

		_, err := NewCaller(cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("записи из stdin", func(t *testing.T) {
		data, err := os.ReadFile("testdata/replay.json")
		require.NoError(t, err)
		withStdin(t, bytes.NewReader(data))

		cfg := replayConfig()
		cfg.API.ReplayFile = ReplayStdin

		st, err := NewStack(cfg, quietLogger())
		require.NoError(t, err)
		reports, err := NewReconciler(cfg, st, quietLogger(), nil, nil).Run(context.Background(), cfg.Reconcile.FolderLimit)
		require.NoError(t, err)
		assert.Len(t, reports, 2)
	})

	t.Run("пустой stdin", func(t *testing.T) {
		withStdin(t, bytes.NewReader(nil))

		cfg := replayConfig()
		cfg.API.ReplayFile = ReplayStdin

		_, err := NewCaller(cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("HTTP-шлюз", func(t *testing.T) {
		cfg := &config.Config{API: config.API{BaseURL: "https://example.test/", Token: "token", Timeout: time.Second}}

		caller, err := NewCaller(cfg, quietLogger())
		require.NoError(t, err)
		assert.IsType(t, &rpc.Gateway{}, caller)
	})
}

func TestNewReconciler_Replay(t *testing.T) {
	cfg := replayConfig()
	st, err := NewStack(cfg, quietLogger())
	require.NoError(t, err)

	cs := cache.NewCacheStore()
	reports, err := NewReconciler(cfg, st, quietLogger(), cs, nil).Run(context.Background(), cfg.Reconcile.FolderLimit)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "2", reports[0].FolderID)
	assert.Equal(t, []string{"42"}, reports[0].MissingChatIDs)
	assert.Equal(t, 1, reports[0].CountDelta)
	assert.False(t, reports[1].MembershipKnown)
	assert.Equal(t, 0, reports[1].CountDelta)

	_, found := cs.Get(cache.LatestKey)
	assert.True(t, found)
}

func TestNewCollector_Replay(t *testing.T) {
	cfg := replayConfig()
	st, err := NewStack(cfg, quietLogger())
	require.NoError(t, err)

	messages, err := NewCollector(cfg, st, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Text)
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.Sync{Retries: 3, RetryInitialInterval: time.Second, RetryMaxInterval: time.Minute})
	assert.Equal(t, 3, p.Retries)
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.Equal(t, time.Minute, p.MaxInterval)
}

func TestStartTelegram_Disabled(t *testing.T) {
	client, err := StartTelegram(context.Background(), config.TelegramAPI{}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) DialogFilters(context.Context) ([]tg.DialogFilterClass, error) {
	return nil, nil
}

func (c *countingClient) Health(context.Context) error {
	c.calls.Add(1)
	return errors.New("flood wait")
}

func (c *countingClient) ID() string                 { return "counting" }
func (c *countingClient) Start(context.Context)      {}
func (c *countingClient) GetRecoveryTime() time.Time { return time.Time{} }

func TestMonitorHealth(t *testing.T) {
	client := &countingClient{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	MonitorHealth(ctx, client, 10*time.Millisecond, quietLogger())

	assert.Eventually(t, func() bool { return client.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

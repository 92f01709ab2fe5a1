package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/term"

	trm "telegram-sync-reconciler/internal/pkg/term"
	"telegram-sync-reconciler/internal/ports"
)

var (
	// ErrFloodWaitActive возвращается, когда клиент не может выполнить запрос из-за активного ограничения FLOOD_WAIT.
	ErrFloodWaitActive = errors.New("client is in flood wait")
	// ErrClientStopped возвращается, если фоновый процесс клиента завершился до готовности.
	ErrClientStopped = errors.New("telegram client stopped")
	// floodWaitRegex используется для парсинга длительности ожидания из сообщения об ошибке.
	floodWaitRegex = regexp.MustCompile(`FLOOD_WAIT \((\d+)\)`)
)

// telegramAPI — методы MTProto, которые использует клиент.
type telegramAPI interface {
	UsersGetUsers(ctx context.Context, request []tg.InputUserClass) ([]tg.UserClass, error)
	MessagesGetDialogFilters(ctx context.Context) (*tg.MessagesDialogFilters, error)
	HelpGetConfig(ctx context.Context) (*tg.Config, error)
}

// telegramAuth представляет клиент аутентификации.
type telegramAuth interface {
	auth.FlowClient
}

// telegramRunner определяет зависимости от клиента gotd, чтобы их можно было подменить в тестах.
type telegramRunner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
	API() telegramAPI
	Auth() telegramAuth
}

// prodRunner является оберткой вокруг реального *telegram.Client.
type prodRunner struct {
	*telegram.Client
}

func (p *prodRunner) API() telegramAPI {
	return p.Client.API()
}

func (p *prodRunner) Auth() telegramAuth {
	return p.Client.Auth()
}

// authFlow определяет интерфейс для процесса аутентификации.
type authFlow interface {
	Run(ctx context.Context, client auth.FlowClient) error
}

// Client — потокобезопасный MTProto-клиент, читающий папки (dialog filters)
// аккаунта напрямую из Telegram. Отслеживает FLOOD_WAIT и не отправляет
// запросы, пока ограничение активно.
type Client struct {
	id         string
	tgRunner   telegramRunner
	authFlow   authFlow
	isTerminal func(fd int) bool
	clock      func() time.Time
	log        *slog.Logger

	mu             sync.RWMutex
	unhealthyUntil time.Time
	runErr         chan error
	ready          chan struct{}
	readyOnce      sync.Once
	done           chan struct{}
	startOnce      sync.Once
}

var _ ports.TelegramClient = (*Client)(nil)

// Config содержит параметры подключения.
type Config struct {
	APIID       int
	APIHash     string
	PhoneNumber string
	SessionPath string
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	termAuth := trm.NewTerminal(cfg.PhoneNumber)

	tgClient := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
	})

	c := newClient(&prodRunner{Client: tgClient}, auth.NewFlow(termAuth, auth.SendCodeOptions{}))
	c.isTerminal = term.IsTerminal

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func newClient(runner telegramRunner, flow authFlow) *Client {
	return &Client{
		id:         uuid.NewString(),
		tgRunner:   runner,
		authFlow:   flow,
		isTerminal: func(int) bool { return false },
		clock:      time.Now,
		log:        slog.Default(),
		runErr:     make(chan error, 1),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID возвращает уникальный идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

// Start запускает фоновый процесс клиента, включая аутентификацию.
// Повторные вызовы ничего не делают.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go func() {
			defer close(c.done)

			c.log.InfoContext(ctx, "Starting telegram client background runner", "client_id", c.id)
			err := c.tgRunner.Run(ctx, func(runCtx context.Context) error {
				if err := c.ensureAuthorized(runCtx); err != nil {
					return err
				}
				c.log.InfoContext(runCtx, "Telegram client authenticated and ready", "client_id", c.id)
				c.readyOnce.Do(func() { close(c.ready) })

				<-runCtx.Done()
				return runCtx.Err()
			})

			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.ErrorContext(ctx, "Telegram client background runner exited with error", "client_id", c.id, "error", err)
			} else {
				c.log.InfoContext(ctx, "Telegram client background runner stopped", "client_id", c.id)
			}

			c.runErr <- err
			close(c.runErr)
		}()
	})
}

// ensureAuthorized проверяет сессию и при необходимости проводит интерактивный вход.
func (c *Client) ensureAuthorized(ctx context.Context) error {
	_, err := c.tgRunner.API().UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err == nil {
		return nil
	}

	if strings.Contains(err.Error(), "AUTH_KEY_UNREGISTERED") {
		c.log.WarnContext(ctx, "Session check failed, attempting interactive auth", "client_id", c.id, "reason", "AUTH_KEY_UNREGISTERED")
	} else {
		c.log.WarnContext(ctx, "Session check failed, attempting interactive auth", "client_id", c.id, "error", err)
	}

	if !c.isTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("session is invalid and cannot perform interactive auth in non-terminal: %w", err)
	}
	if authErr := c.authFlow.Run(ctx, c.tgRunner.Auth()); authErr != nil {
		return fmt.Errorf("interactive auth failed: %w", authErr)
	}
	c.log.InfoContext(ctx, "Interactive auth successful, session saved", "client_id", c.id)
	return nil
}

// WaitReady блокируется, пока клиент не авторизуется, не остановится или не истечет ctx.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		select {
		case <-c.ready:
			return nil
		default:
		}
		return ErrClientStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health проверяет работоспособность клиента легковесным запросом.
// Если активен FLOOD_WAIT, запрос не отправляется.
func (c *Client) Health(ctx context.Context) error {
	if err := c.checkHealthStatus(); err != nil {
		return err
	}

	return c.do(ctx, func(ctx context.Context) error {
		_, err := c.tgRunner.API().HelpGetConfig(ctx)
		return err
	})
}

// DialogFilters возвращает папки аккаунта в том виде, в каком их хранит Telegram.
func (c *Client) DialogFilters(ctx context.Context) ([]tg.DialogFilterClass, error) {
	var result []tg.DialogFilterClass
	c.log.DebugContext(ctx, "Executing API call: MessagesGetDialogFilters")
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesGetDialogFilters(ctx)
		if err == nil && res != nil {
			result = res.Filters
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call MessagesGetDialogFilters failed", "error", err)
	}
	return result, err
}

// GetRecoveryTime возвращает момент окончания FLOOD_WAIT или нулевое время.
func (c *Client) GetRecoveryTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unhealthyUntil
}

// do выполняет операцию с учетом FLOOD_WAIT и состояния фонового процесса.
func (c *Client) do(ctx context.Context, f func(ctx context.Context) error) error {
	if err := c.checkHealthStatus(); err != nil {
		c.log.WarnContext(ctx, "Client is unhealthy, skipping request", "error", err)
		return err
	}

	opErr := f(ctx)
	if opErr == nil {
		return nil
	}

	c.handleError(opErr)

	select {
	case runErr, ok := <-c.runErr:
		if ok && runErr != nil {
			return fmt.Errorf("telegram client is not running: %w (operation error: %v)", runErr, opErr)
		}
	default:
	}

	return opErr
}

// checkHealthStatus проверяет, не находится ли клиент в состоянии FLOOD_WAIT.
func (c *Client) checkHealthStatus() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.unhealthyUntil.IsZero() && c.clock().Before(c.unhealthyUntil) {
		return fmt.Errorf("%w: active until %v", ErrFloodWaitActive, c.unhealthyUntil)
	}
	return nil
}

// handleError ищет FLOOD_WAIT в ошибке и обновляет состояние клиента.
func (c *Client) handleError(err error) {
	waitDuration, ok := parseFloodWait(err)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.unhealthyUntil = c.clock().Add(waitDuration)
	c.log.Warn("Client got FLOOD_WAIT, set unhealthy", "wait_duration", waitDuration, "until", c.unhealthyUntil)
}

// parseFloodWait извлекает длительность ожидания из ошибки.
func parseFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	matches := floodWaitRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}

	seconds, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}

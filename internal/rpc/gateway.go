package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"telegram-sync-reconciler/internal/ports"
)

const (
	// TokenHeader — заголовок, в котором передается публичный API-токен.
	TokenHeader = "public-api-token"
	// procedurePrefix — пространство имен публичного API на стороне tRPC.
	procedurePrefix = "apiv1."
	maxResponseSize = 32 << 20
)

var (
	errMissingResult = errors.New("response envelope has no result field")
	errEmptyBody     = errors.New("empty response body")
)

// Gateway выполняет tRPC-вызовы поверх HTTP.
// Конфигурация задается один раз при создании и не меняется, поэтому
// один экземпляр безопасно использовать из нескольких горутин.
type Gateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

var _ ports.Caller = (*Gateway)(nil)

// Option настраивает Gateway.
type Option func(*Gateway)

// WithHTTPClient подменяет HTTP-клиент (таймауты, транспорт, тестовый сервер).
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithTimeout задает общий таймаут одного вызова.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.httpClient.Timeout = d
		}
	}
}

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGateway создает шлюз к сервису по адресу baseURL с токеном token.
func NewGateway(baseURL, token string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call выполняет операцию op. Для чтения аргумент сериализуется в query-параметр
// input, для мутации в тело запроса. Повторных попыток не делает.
func (g *Gateway) Call(ctx context.Context, op string, kind ports.CallKind, payload any) (json.RawMessage, error) {
	req, err := g.newRequest(ctx, op, kind, payload)
	if err != nil {
		return nil, &Error{Op: op, Class: ClassTransport, Err: err}
	}

	g.log.DebugContext(ctx, "Executing RPC call", "op", op, "kind", kind.String())
	started := time.Now()

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Class: ClassTransport, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Op: op, Class: ClassTransport, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	data, err := decodeEnvelope(op, resp.StatusCode, body)
	if err != nil {
		g.log.WarnContext(ctx, "RPC call failed", "op", op, "status", resp.StatusCode, "error", err)
		return nil, err
	}

	g.log.DebugContext(ctx, "RPC call finished", "op", op, "status", resp.StatusCode, "duration", time.Since(started))
	return data, nil
}

func (g *Gateway) newRequest(ctx context.Context, op string, kind ports.CallKind, payload any) (*http.Request, error) {
	endpoint := g.baseURL + "/trpc/" + procedurePrefix + op

	var (
		method = http.MethodGet
		body   io.Reader
	)

	switch kind {
	case ports.KindRead:
		if payload != nil {
			input, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode input: %w", err)
			}
			endpoint += "?" + url.Values{"input": []string{string(input)}}.Encode()
		}
	case ports.KindMutate:
		method = http.MethodPost
		if payload == nil {
			payload = struct{}{}
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(b)
	default:
		return nil, fmt.Errorf("unknown call kind %d", kind)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TokenHeader, g.token)
	return req, nil
}

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

// decodeEnvelope раскладывает ответ по классам: успех, ошибка приложения, транспортный сбой.
func decodeEnvelope(op string, status int, body []byte) (json.RawMessage, error) {
	ok := status >= 200 && status < 300

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if len(bytes.TrimSpace(body)) == 0 {
		decodeErr = errEmptyBody
	}

	if decodeErr == nil && len(env.Error) > 0 && !isJSONNull(env.Error) {
		return nil, &Error{Op: op, Class: ClassApplication, Status: status, Payload: env.Error}
	}

	if !ok {
		return nil, &Error{
			Op:      op,
			Class:   ClassTransport,
			Status:  status,
			Payload: rawPayload(body),
			Err:     fmt.Errorf("unexpected status code: %d", status),
		}
	}

	if decodeErr != nil {
		return nil, &Error{Op: op, Class: ClassTransport, Status: status, Payload: rawPayload(body), Err: fmt.Errorf("malformed envelope: %w", decodeErr)}
	}
	if env.Result == nil {
		return nil, &Error{Op: op, Class: ClassTransport, Status: status, Payload: rawPayload(body), Err: errMissingResult}
	}
	if len(env.Result.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Result.Data, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// rawPayload сохраняет тело ответа как JSON, даже если это обычный текст.
func rawPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

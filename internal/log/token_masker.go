package log

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// mask подставляется вместо скрытого значения.
const mask = "***masked***"

// minSecretLen — значения короче не маскируются, чтобы не портить обычный текст.
const minSecretLen = 4

// маскируем значение заголовка public-api-token в дампах запросов
var apiTokenHeaderRegex = regexp.MustCompile(`(?i)(public-api-token["']?\s*[:=]\s*["']?)([^\s"',;}]+)`)

// TokenMaskerHandler - обертка для slog.Handler, которая маскирует API-токен
// и другие секреты в сообщениях и атрибутах
type TokenMaskerHandler struct {
	handler slog.Handler
	secrets []string
}

// NewTokenMaskerHandler создает новый обработчик, скрывающий переданные секреты
func NewTokenMaskerHandler(handler slog.Handler, secrets ...string) *TokenMaskerHandler {
	filtered := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if len(s) >= minSecretLen {
			filtered = append(filtered, s)
		}
	}
	// Длинные секреты заменяются первыми, если один содержит другой.
	sort.Slice(filtered, func(i, j int) bool { return len(filtered[i]) > len(filtered[j]) })

	return &TokenMaskerHandler{
		handler: handler,
		secrets: filtered,
	}
}

// maskTokens заменяет найденные секреты на маску
func (h *TokenMaskerHandler) maskTokens(text string) string {
	for _, s := range h.secrets {
		text = strings.ReplaceAll(text, s, mask)
	}
	return apiTokenHeaderRegex.ReplaceAllString(text, "${1}"+mask)
}

// Enabled реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Работаем с копией: slog может переиспользовать исходную запись.
	// Атрибуты в копию добавляются заново уже маскированными.
	r := slog.NewRecord(record.Time, record.Level, h.maskTokens(record.Message), record.PC)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(h.maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = h.maskAttr(attr)
	}
	return &TokenMaskerHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
		secrets: h.secrets,
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *TokenMaskerHandler) WithGroup(name string) slog.Handler {
	return &TokenMaskerHandler{
		handler: h.handler.WithGroup(name),
		secrets: h.secrets,
	}
}

func (h *TokenMaskerHandler) maskAttr(a slog.Attr) slog.Attr {
	return slog.Attr{Key: a.Key, Value: h.maskValue(a.Value)}
}

// maskValue рекурсивно маскирует значения атрибутов
func (h *TokenMaskerHandler) maskValue(value slog.Value) slog.Value {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.maskTokens(value.String()))
	case slog.KindAny:
		// Ошибки и Stringer'ы печатаются как текст и могут содержать URL или заголовки.
		switch v := value.Any().(type) {
		case error:
			return slog.StringValue(h.maskTokens(v.Error()))
		case []byte:
			return slog.StringValue(h.maskTokens(string(v)))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = h.maskAttr(attr)
		}
		return slog.GroupValue(maskedGroup...)
	default:
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой секретов
func NewMaskedLogger(handler slog.Handler, secrets ...string) *slog.Logger {
	return slog.New(NewTokenMaskerHandler(handler, secrets...))
}

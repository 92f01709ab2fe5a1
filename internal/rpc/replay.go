package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"telegram-sync-reconciler/internal/ports"
)

// Response — одна записанная реакция сервиса на вызов.
// Заполнено ровно одно из полей.
type Response struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Recording — записанные ответы по операциям, в порядке выдачи.
type Recording map[string][]Response

// ReplayCaller отдает записанные ответы вместо сетевых вызовов.
// Позволяет прогнать сверку офлайн на сохраненных данных.
type ReplayCaller struct {
	mu        sync.Mutex
	recording Recording
	offsets   map[string]int
	calls     []string
}

var _ ports.Caller = (*ReplayCaller)(nil)

// NewReplayCaller создает ReplayCaller поверх записи rec.
func NewReplayCaller(rec Recording) *ReplayCaller {
	return &ReplayCaller{
		recording: rec,
		offsets:   make(map[string]int),
	}
}

// Call возвращает следующий записанный ответ для op.
func (r *ReplayCaller) Call(ctx context.Context, op string, _ ports.CallKind, _ any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Class: ClassTransport, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, op)

	responses := r.recording[op]
	idx := r.offsets[op]
	if idx >= len(responses) {
		return nil, &Error{Op: op, Class: ClassTransport, Err: fmt.Errorf("no recorded response #%d", idx+1)}
	}
	r.offsets[op] = idx + 1

	resp := responses[idx]
	if len(resp.Error) > 0 {
		return nil, &Error{Op: op, Class: ClassApplication, Payload: resp.Error}
	}
	if len(resp.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Data, nil
}

// Calls возвращает порядок выполненных вызовов.
func (r *ReplayCaller) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

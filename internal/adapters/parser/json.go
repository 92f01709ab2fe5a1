package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"telegram-sync-reconciler/internal/ports"
	"telegram-sync-reconciler/internal/rpc"
)

// ErrInvalidFixture возвращается для записи, в которой нет ровно одного из полей data и error.
var ErrInvalidFixture = errors.New("fixture entry must have exactly one of data or error")

// JsonParser разбирает файл записанных ответов вида
//
//	{"telegram.folders": [{"data": [...]}, {"error": {"message": "..."}}]}
//
// в rpc.Recording.
type JsonParser struct{}

// NewJsonParser создает новый экземпляр JsonParser.
func NewJsonParser() *JsonParser {
	return &JsonParser{}
}

// Parse преобразует срез байт с JSON в запись ответов.
func (p *JsonParser) Parse(data []byte) (rpc.Recording, error) {
	var raw map[string][]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	ops := make([]string, 0, len(raw))
	for op := range raw {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	rec := make(rpc.Recording, len(raw))
	for _, op := range ops {
		entries := raw[op]
		responses := make([]rpc.Response, 0, len(entries))
		for i, entry := range entries {
			dataField, hasData := entry["data"]
			errField, hasErr := entry["error"]
			if hasData == hasErr {
				return nil, fmt.Errorf("%s[%d]: %w", op, i, ErrInvalidFixture)
			}
			if hasData {
				responses = append(responses, rpc.Response{Data: dataField})
			} else {
				responses = append(responses, rpc.Response{Error: errField})
			}
		}
		rec[op] = responses
	}
	return rec, nil
}

// Load читает данные из ds и разбирает их.
func (p *JsonParser) Load(ds ports.DataSource) (rpc.Recording, error) {
	data, err := ds.Fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}
	return p.Parse(data)
}

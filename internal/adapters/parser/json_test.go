package parser

import (
	"encoding/json"
	"errors"
	"testing"

	"telegram-sync-reconciler/internal/adapters/source"
)

func TestJsonParser(t *testing.T) {
	t.Run("Разбор корректного JSON", func(t *testing.T) {
		parser := NewJsonParser()
		testData := `{
			"telegram.syncTelegram": [{"data": {"ok": true}}],
			"telegram.folders": [
				{"data": [{"id": 1, "title": "Work"}]},
				{"error": {"message": "rate limited"}}
			]
		}`

		rec, err := parser.Parse([]byte(testData))
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}

		if len(rec) != 2 {
			t.Fatalf("Ожидалось 2 операции, получено %d", len(rec))
		}
		folders := rec["telegram.folders"]
		if len(folders) != 2 {
			t.Fatalf("Ожидалось 2 ответа для telegram.folders, получено %d", len(folders))
		}
		if folders[0].Data == nil || folders[0].Error != nil {
			t.Error("Первый ответ должен содержать только data")
		}
		if folders[1].Error == nil || folders[1].Data != nil {
			t.Error("Второй ответ должен содержать только error")
		}

		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(folders[1].Error, &payload); err != nil || payload.Message != "rate limited" {
			t.Errorf("Ожидалось сообщение 'rate limited', получено '%s' (%v)", payload.Message, err)
		}
	})

	t.Run("data: null допустим", func(t *testing.T) {
		rec, err := NewJsonParser().Parse([]byte(`{"telegram.syncTelegram": [{"data": null}]}`))
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if string(rec["telegram.syncTelegram"][0].Data) != "null" {
			t.Errorf("Ожидалось null, получено %s", rec["telegram.syncTelegram"][0].Data)
		}
	})

	t.Run("Запись без data и error", func(t *testing.T) {
		_, err := NewJsonParser().Parse([]byte(`{"telegram.folders": [{}]}`))
		if !errors.Is(err, ErrInvalidFixture) {
			t.Errorf("Ожидалась ошибка ErrInvalidFixture, получено %v", err)
		}
	})

	t.Run("Запись с data и error одновременно", func(t *testing.T) {
		_, err := NewJsonParser().Parse([]byte(`{"telegram.folders": [{"data": [], "error": {}}]}`))
		if !errors.Is(err, ErrInvalidFixture) {
			t.Errorf("Ожидалась ошибка ErrInvalidFixture, получено %v", err)
		}
	})

	t.Run("Разбор некорректного JSON", func(t *testing.T) {
		_, err := NewJsonParser().Parse([]byte(`{"invalid": json}`))
		if err == nil {
			t.Error("Ожидалась ошибка для некорректного JSON, получено nil")
		}
	})

	t.Run("Load читает из источника данных", func(t *testing.T) {
		ds := source.NewMemorySource([]byte(`{"telegram.messages": [{"data": {"messages": []}}]}`))

		rec, err := NewJsonParser().Load(ds)
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if len(rec["telegram.messages"]) != 1 {
			t.Errorf("Ожидался 1 ответ, получено %d", len(rec["telegram.messages"]))
		}
	})

	t.Run("Load возвращает ошибку источника", func(t *testing.T) {
		_, err := NewJsonParser().Load(source.NewMemorySource(nil))
		if !errors.Is(err, source.ErrNoData) {
			t.Errorf("Ожидалась ошибка ErrNoData, получено %v", err)
		}
	})
}

package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource(t *testing.T) {
	t.Run("Fetch возвращает ошибку для пустого пути к файлу", func(t *testing.T) {
		source := NewFileSource("")

		data, err := source.Fetch()
		if !errors.Is(err, ErrEmptyPath) {
			t.Errorf("Ожидалась ошибка ErrEmptyPath, получено %v", err)
		}
		if data != nil {
			t.Error("Ожидались nil данные для пустого пути к файлу, получены данные")
		}
	})

	t.Run("Fetch возвращает ошибку для несуществующего файла", func(t *testing.T) {
		source := NewFileSource(filepath.Join(t.TempDir(), "missing.json"))

		data, err := source.Fetch()
		if err == nil {
			t.Error("Ожидалась ошибка для несуществующего файла, получено nil")
		}
		if data != nil {
			t.Error("Ожидались nil данные для несуществующего файла, получены данные")
		}
	})

	t.Run("Fetch возвращает ошибку для директории", func(t *testing.T) {
		source := NewFileSource(t.TempDir())

		if _, err := source.Fetch(); err == nil {
			t.Error("Ожидалась ошибка для директории, получено nil")
		}
	})

	t.Run("Fetch возвращает данные для существующего файла", func(t *testing.T) {
		testData := []byte(`{"telegram.syncTelegram":[{"data":{"ok":true}}]}`)
		path := filepath.Join(t.TempDir(), "fixtures.json")
		if err := os.WriteFile(path, testData, 0o600); err != nil {
			t.Fatalf("Не удалось создать временный файл: %v", err)
		}

		data, err := NewFileSource(path).Fetch()
		if err != nil {
			t.Fatalf("Неожиданная ошибка: %v", err)
		}
		if string(data) != string(testData) {
			t.Errorf("Ожидались данные %s, получены %s", testData, data)
		}
	})
}

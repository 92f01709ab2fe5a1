package source

import (
	"errors"
	"fmt"
	"os"

	"telegram-sync-reconciler/internal/ports"
)

// maxFixtureSize ограничивает размер файла с записанными ответами.
const maxFixtureSize = 64 << 20

// ErrEmptyPath возвращается, если путь к файлу не задан.
var ErrEmptyPath = errors.New("file path is not set")

// FileSource реализует интерфейс DataSource для чтения записанных ответов из файла.
type FileSource struct {
	filePath string
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(filePath string) ports.DataSource {
	return &FileSource{filePath: filePath}
}

// Fetch читает файл целиком.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, ErrEmptyPath
	}

	info, err := os.Stat(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", s.filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", s.filePath)
	}
	if info.Size() > maxFixtureSize {
		return nil, fmt.Errorf("file %s is too large: %d bytes", s.filePath, info.Size())
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filePath, err)
	}

	return data, nil
}

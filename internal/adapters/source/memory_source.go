package source

import (
	"errors"

	"telegram-sync-reconciler/internal/ports"
)

// ErrNoData возвращается, если данные не установлены.
var ErrNoData = errors.New("no data set")

// MemorySource реализует интерфейс DataSource поверх среза байт,
// например тела HTTP-запроса или встроенной фикстуры.
type MemorySource struct {
	data []byte
}

// NewMemorySource создает новый экземпляр MemorySource.
func NewMemorySource(data []byte) ports.DataSource {
	return &MemorySource{data: data}
}

// Fetch возвращает копию данных.
func (s *MemorySource) Fetch() ([]byte, error) {
	if s.data == nil {
		return nil, ErrNoData
	}

	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)

	return dataCopy, nil
}

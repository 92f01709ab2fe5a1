package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"telegram-sync-reconciler/internal/domain"
)

// LatestKey — ключ последнего успешного прогона сверки.
const LatestKey = "latest"

// FolderLimitKey возвращает ключ прогона с заданным лимитом папок.
func FolderLimitKey(limit int) string {
	return "folders:" + strconv.Itoa(limit)
}

// CacheItem представляет кэшированный результат сверки
type CacheItem struct {
	Reports   []domain.ReconciliationReport
	StoredAt  time.Time
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных результатов
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
	now   func() time.Time
}

// NewCacheStore создает новый экземпляр CacheStore
func NewCacheStore() *CacheStore {
	return &CacheStore{
		cache: make(map[string]*CacheItem),
		now:   time.Now,
	}
}

// Get извлекает кэшированный элемент по ключу
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[key]
	if !exists || cs.now().After(item.ExpiresAt) {
		return nil, false
	}

	return item, true
}

// Put сохраняет отчеты в кэш с указанным сроком действия.
// Срез копируется, чтобы последующие изменения вызывающего кода не влияли на кэш.
func (cs *CacheStore) Put(key string, reports []domain.ReconciliationReport, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	stored := make([]domain.ReconciliationReport, len(reports))
	copy(stored, reports)

	now := cs.now()
	cs.cache[key] = &CacheItem{
		Reports:   stored,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Len возвращает число элементов, включая еще не удаленные просроченные.
func (cs *CacheStore) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache)
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

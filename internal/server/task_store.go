package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telegram-sync-reconciler/internal/domain"
)

// ErrTaskNotFound — задачи с таким ID нет или она уже удалена по TTL.
var ErrTaskNotFound = errors.New("задача не найдена")

// TaskStatus представляет статус прогона сверки
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task представляет собой один прогон сверки
type Task struct {
	ID           string
	Status       TaskStatus
	FolderLimit  int
	Reports      []domain.ReconciliationReport
	ErrorMessage string
	// ErrorPhase — этап, на котором прогон завершился ошибкой.
	ErrorPhase string
	CreatedAt  time.Time
	FinishedAt time.Time
	ExpiresAt  time.Time // Для автоматической очистки
}

// TaskStore управляет хранением и извлечением задач
type TaskStore struct {
	tasks map[string]*Task
	mutex sync.RWMutex
	now   func() time.Time
}

// NewTaskStore создает новый экземпляр TaskStore
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// CreateTask создает новую задачу со статусом 'pending'
func (ts *TaskStore) CreateTask(taskID string, folderLimit int, ttl time.Duration) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.now()
	ts.tasks[taskID] = &Task{
		ID:          taskID,
		Status:      TaskStatusPending,
		FolderLimit: folderLimit,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// UpdateTaskStatus обновляет статус задачи
func (ts *TaskStore) UpdateTaskStatus(taskID string, status TaskStatus) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task.Status = status
	return nil
}

// UpdateTaskResult сохраняет отчеты и переводит задачу в 'completed'
func (ts *TaskStore) UpdateTaskResult(taskID string, reports []domain.ReconciliationReport) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task.Status = TaskStatusCompleted
	task.Reports = append([]domain.ReconciliationReport(nil), reports...)
	task.FinishedAt = ts.now()
	return nil
}

// UpdateTaskError сохраняет ошибку и переводит задачу в 'failed'
func (ts *TaskStore) UpdateTaskError(taskID string, phase string, errorMessage string) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task.Status = TaskStatusFailed
	task.ErrorPhase = phase
	task.ErrorMessage = errorMessage
	task.FinishedAt = ts.now()
	return nil
}

// GetTask возвращает копию задачи по ее ID
func (ts *TaskStore) GetTask(taskID string) (Task, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return *task, nil
}

// CleanupExpired удаляет просроченные задачи из хранилища
func (ts *TaskStore) CleanupExpired() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.now()
	for taskID, task := range ts.tasks {
		if now.After(task.ExpiresAt) {
			delete(ts.tasks, taskID)
		}
	}
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных задач
func (ts *TaskStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.CleanupExpired()
			}
		}
	}()
}

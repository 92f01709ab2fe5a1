package usecase

import (
	"errors"
	"fmt"

	"telegram-sync-reconciler/internal/adapters/threesum"
	"telegram-sync-reconciler/internal/domain"
	"telegram-sync-reconciler/internal/rpc"
)

// Phase — этап прогона, на котором произошел сбой.
type Phase string

const (
	PhaseSync       Phase = "sync"
	PhaseFolders    Phase = "folders"
	PhaseMembership Phase = "membership"
	PhaseDialogs    Phase = "dialogs"
	PhaseMessages   Phase = "messages"
)

var (
	// ErrInvalidFolderLimit возвращается до любых сетевых вызовов.
	ErrInvalidFolderLimit = errors.New("folder limit must be positive")
	// ErrFolderIndex — запрошенной папки нет в списке.
	ErrFolderIndex = errors.New("folder index out of range")
)

// RunError описывает, на каком этапе и для какой папки прервался прогон.
type RunError struct {
	Phase    Phase
	FolderID string
	Err      error
}

func (e *RunError) Error() string {
	if e.FolderID != "" {
		return fmt.Sprintf("%s phase failed for folder %s: %v", e.Phase, e.FolderID, e.Err)
	}
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// PhaseOf возвращает этап сбоя из цепочки err, или пустую строку.
func PhaseOf(err error) Phase {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Phase
	}
	return ""
}

// emptyFoldersError оформляет пустой список папок как ошибку уровня приложения.
func emptyFoldersError() error {
	return &RunError{
		Phase: PhaseFolders,
		Err:   &rpc.Error{Op: threesum.OpFolders, Class: rpc.ClassApplication, Err: domain.ErrEmptyResult},
	}
}

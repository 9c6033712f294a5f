package services

import "errors"

var (
	ErrNotFound         = errors.New("resource not found")
	ErrSelfParent       = errors.New("folder cannot be moved into itself")
	ErrIntoOwnSubtree   = errors.New("folder cannot be moved into its own subtree")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrEmptySelection   = errors.New("no files or folders selected")
	ErrDuplicateFile    = errors.New("identical file already exists")
	ErrUploadIncomplete = errors.New("upload session has missing bytes")
	ErrSessionCompleted = errors.New("upload session already completed")
	ErrSessionExpired   = errors.New("upload session expired")
)

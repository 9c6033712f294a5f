package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storafe/backend/internal/models"
	"github.com/storafe/backend/internal/storage"
	"github.com/storafe/backend/pkg/logger"
	"gorm.io/gorm"
)

const sessionTTL = 24 * time.Hour

// UploadService manages resumable chunked uploads. Chunks accumulate in a
// staging file under the temp directory; Complete verifies the byte count,
// hashes the assembled file, and promotes it into the storage backend.
// Expired sessions are detected lazily on access, there is no reaper.
type UploadService struct {
	DB      *gorm.DB
	Backend storage.Backend
	Ledger  *QuotaLedger
	TempDir string

	mu      sync.Mutex
	writers map[string]*sync.Mutex
}

func NewUploadService(db *gorm.DB, backend storage.Backend, ledger *QuotaLedger, tempDir string) (*UploadService, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, err
	}
	return &UploadService{
		DB:      db,
		Backend: backend,
		Ledger:  ledger,
		TempDir: tempDir,
		writers: make(map[string]*sync.Mutex),
	}, nil
}

// sessionLock serializes chunk appends per session token.
func (u *UploadService) sessionLock(token string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	lock, ok := u.writers[token]
	if !ok {
		lock = &sync.Mutex{}
		u.writers[token] = lock
	}
	return lock
}

func (u *UploadService) releaseLock(token string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.writers, token)
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Initiate opens a session for a file of totalSize bytes. Capacity is
// checked up front so a doomed upload fails before any bytes move, and
// checked again at Complete.
func (u *UploadService) Initiate(ctx context.Context, userID uuid.UUID, filename string, totalSize int64) (*models.UploadSession, error) {
	if err := u.Ledger.EnsureCapacity(ctx, u.DB, userID, totalSize); err != nil {
		return nil, err
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session := &models.UploadSession{
		UserID:       userID,
		SessionToken: token,
		Filename:     filename,
		TotalSize:    totalSize,
		UploadedSize: 0,
		TempFilePath: filepath.Join(u.TempDir, token),
		Status:       models.UploadStatusPending,
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	if err := u.DB.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// AppendChunk writes the next chunk to the session's staging file. Chunks
// for the same session are serialized; callers stream them in order.
func (u *UploadService) AppendChunk(ctx context.Context, userID uuid.UUID, token string, chunk io.Reader) (*models.UploadSession, error) {
	lock := u.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	session, err := u.ownedSession(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if session.Status == models.UploadStatusCompleted {
		return nil, ErrSessionCompleted
	}
	if session.Expired(time.Now()) {
		u.discard(ctx, session)
		return nil, ErrSessionExpired
	}

	f, err := os.OpenFile(session.TempFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	written, err := io.Copy(f, chunk)
	closeErr := f.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	session.UploadedSize += written
	session.Status = models.UploadStatusUploading
	err = u.DB.WithContext(ctx).Model(session).Updates(map[string]interface{}{
		"uploaded_size": session.UploadedSize,
		"status":        session.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Complete verifies the session received every byte, hashes the staged
// file, and promotes it into the backend as a new file row under
// parentFolderID. The quota ledger is charged inside the same transaction
// that creates the row.
func (u *UploadService) Complete(ctx context.Context, userID uuid.UUID, token string, parentFolderID *uuid.UUID, mimeType string) (*models.File, error) {
	lock := u.sessionLock(token)
	lock.Lock()
	defer lock.Unlock()

	session, err := u.ownedSession(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if session.Status == models.UploadStatusCompleted {
		return nil, ErrSessionCompleted
	}
	if session.Expired(time.Now()) {
		u.discard(ctx, session)
		return nil, ErrSessionExpired
	}
	if session.UploadedSize != session.TotalSize {
		return nil, ErrUploadIncomplete
	}

	hash, err := hashFile(session.TempFilePath)
	if err != nil {
		return nil, err
	}

	var created *models.File
	err = u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := u.Ledger.EnsureCapacity(ctx, tx, userID, session.TotalSize); err != nil {
			return err
		}

		var existing models.File
		err := tx.First(&existing, "hash_sha256 = ?", hash).Error
		if err == nil {
			return ErrDuplicateFile
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if parentFolderID != nil {
			var folder models.Folder
			err := tx.First(&folder, "id = ? AND owner_id = ?", *parentFolderID, userID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
		}

		obj, err := u.Backend.SaveFromStaging(ctx, session.TempFilePath, userID.String(), session.Filename)
		if err != nil {
			return err
		}

		file := &models.File{
			OriginalName:    session.Filename,
			Filename:        obj.Name,
			FilePath:        obj.Key,
			Size:            session.TotalSize,
			MimeType:        mimeType,
			HashSHA256:      hash,
			ParentFolderID:  parentFolderID,
			OwnerID:         userID,
			UploadSessionID: &session.ID,
		}
		if err := tx.Create(file).Error; err != nil {
			return err
		}

		if err := tx.Model(session).Updates(map[string]interface{}{
			"status":         models.UploadStatusCompleted,
			"temp_file_path": "",
		}).Error; err != nil {
			return err
		}

		created = file
		return u.Ledger.Adjust(tx, userID, session.TotalSize)
	})
	if err != nil {
		return nil, err
	}

	u.releaseLock(token)
	return created, nil
}

func (u *UploadService) ownedSession(ctx context.Context, userID uuid.UUID, token string) (*models.UploadSession, error) {
	var session models.UploadSession
	err := u.DB.WithContext(ctx).
		First(&session, "session_token = ? AND user_id = ?", token, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// discard drops an expired session's row and staging file.
func (u *UploadService) discard(ctx context.Context, session *models.UploadSession) {
	if session.TempFilePath != "" {
		if err := os.Remove(session.TempFilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("upload_staging_cleanup_failed", map[string]interface{}{
				"session_token": session.SessionToken,
			})
		}
	}
	if err := u.DB.WithContext(ctx).Unscoped().Delete(session).Error; err != nil {
		logger.Warn("upload_session_cleanup_failed", map[string]interface{}{
			"session_token": session.SessionToken,
		})
	}
	u.releaseLock(session.SessionToken)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Package logstore persists, queries and deletes log entries. Request
// metadata is passed in explicitly through RequestInfo; store errors are
// returned to the caller unchanged.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PhilHem/logstore/backend/models"

	"gorm.io/gorm"
)

// ErrInvalidArgument is returned for calls that are rejected before the
// store is touched.
var ErrInvalidArgument = errors.New("invalid argument")

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// IsLevelEnabled reports whether entries of the given level are recorded.
// Debug is always off.
func (s *Store) IsLevelEnabled(level models.Level) bool {
	return level != models.LevelDebug
}

// Delete removes a single persisted entry by its ID.
func (s *Store) Delete(ctx context.Context, entry *models.LogEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: log entry is nil", ErrInvalidArgument)
	}
	return s.db.WithContext(ctx).Where("id = ?", entry.ID).Delete(&models.LogEntry{}).Error
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrInvalidArgument)
	}
	result := s.db.WithContext(ctx).Delete(&models.LogEntry{}, ids)
	return result.RowsAffected, result.Error
}

// ClearAll loads every entry and deletes them one at a time. It is not
// atomic: it stops at the first failed delete and reports how many entries
// were removed before that. Those stay removed.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	var entries []models.LogEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return 0, err
	}

	deleted := 0
	for i := range entries {
		if err := s.Delete(ctx, &entries[i]); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// GetByID returns the entry with the given ID, or nil if there is none.
// ID 0 never matches and does not hit the store.
func (s *Store) GetByID(ctx context.Context, id uint) (*models.LogEntry, error) {
	if id == 0 {
		return nil, nil
	}

	var entry models.LogEntry
	err := s.db.WithContext(ctx).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Insert persists a new entry. When cause is a cancellation nothing is
// written and (nil, nil) is returned.
func (s *Store) Insert(ctx context.Context, level models.Level, message string, cause Cause, info RequestInfo) (*models.LogEntry, error) {
	if cause.Cancelled() {
		return nil, nil
	}

	entry := &models.LogEntry{
		Level:       level,
		Message:     message,
		Exception:   cause.Text(),
		IPAddress:   info.IPAddress,
		UserID:      info.UserID,
		PageURL:     info.PageURL,
		ReferrerURL: info.ReferrerURL,
		CreatedOn:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// InsertError is Insert with the cause classified from err.
func (s *Store) InsertError(ctx context.Context, level models.Level, message string, err error, info RequestInfo) (*models.LogEntry, error) {
	return s.Insert(ctx, level, message, Classify(err), info)
}

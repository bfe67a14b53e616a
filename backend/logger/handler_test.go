package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/logstore"
	"github.com/PhilHem/logstore/backend/models"

	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) (*gorm.DB, *logstore.Store) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return db, logstore.New(db)
}

func allEntries(t *testing.T, db *gorm.DB) []models.LogEntry {
	t.Helper()
	var entries []models.LogEntry
	if err := db.Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	return entries
}

// RED: Test debug records are neither printed nor stored
func TestDBHandler_SkipsDebug(t *testing.T) {
	db, store := setupTestStore(t)
	var out bytes.Buffer
	log := slog.New(NewDBHandler(store, &out))

	log.Debug("noisy detail")

	if out.Len() != 0 {
		t.Errorf("Debug should not be printed, got %s", out.String())
	}
	if n := len(allEntries(t, db)); n != 0 {
		t.Errorf("Debug should not be stored, got %d entries", n)
	}
}

// RED: Test SkipStore records are printed but not stored
func TestDBHandler_SkipStore(t *testing.T) {
	db, store := setupTestStore(t)
	var out bytes.Buffer
	log := slog.New(NewDBHandler(store, &out))

	log.InfoContext(SkipStore(context.Background()), "logs cleared", "deleted", 3)

	if !strings.Contains(out.String(), "logs cleared") {
		t.Errorf("Expected record on output, got %s", out.String())
	}
	if n := len(allEntries(t, db)); n != 0 {
		t.Errorf("Expected nothing stored, got %d entries", n)
	}
}

// RED: Test records are stored with their level and attributes
func TestDBHandler_StoresRecord(t *testing.T) {
	db, store := setupTestStore(t)
	var out bytes.Buffer
	log := slog.New(NewDBHandler(store, &out)).With("source", "auth")

	log.Warn("login failed", "email", "a@example.com")

	entries := allEntries(t, db)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Level != models.LevelWarning {
		t.Errorf("Expected Warning, got %v", e.Level)
	}
	if e.Message != "login failed source=auth email=a@example.com" {
		t.Errorf("Unexpected message %q", e.Message)
	}
	if !strings.Contains(out.String(), `"msg":"login failed"`) {
		t.Errorf("Expected JSON line on output, got %s", out.String())
	}
}

// RED: Test an error attribute becomes the exception text
func TestDBHandler_ErrorAttr(t *testing.T) {
	db, store := setupTestStore(t)
	log := slog.New(NewDBHandler(store, &bytes.Buffer{}))

	err := fmt.Errorf("save order: %w", errors.New("constraint failed"))
	log.Error("checkout failed", "error", err)

	entries := allEntries(t, db)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "checkout failed" {
		t.Errorf("Unexpected message %q", entries[0].Message)
	}
	if !strings.HasPrefix(entries[0].Exception, "save order: constraint failed\n ---> ") {
		t.Errorf("Unexpected exception %q", entries[0].Exception)
	}
}

// RED: Test cancellations are not logged to the store
func TestDBHandler_SkipsCancellation(t *testing.T) {
	db, store := setupTestStore(t)
	log := slog.New(NewDBHandler(store, &bytes.Buffer{}))

	log.Error("request aborted", "error", fmt.Errorf("query: %w", context.Canceled))

	if n := len(allEntries(t, db)); n != 0 {
		t.Errorf("Cancelled work should not be stored, got %d entries", n)
	}
}

// RED: Test request metadata is read from the context
func TestDBHandler_RequestInfo(t *testing.T) {
	db, store := setupTestStore(t)
	log := slog.New(NewDBHandler(store, &bytes.Buffer{}))

	ctx, cancel := context.WithCancel(logstore.WithRequestInfo(context.Background(), logstore.RequestInfo{
		UserID:    4,
		IPAddress: "198.51.100.4",
		PageURL:   "http://example.com/admin/logs",
	}))
	cancel() // request already finished, entry must still be written
	log.InfoContext(ctx, "page viewed")

	entries := allEntries(t, db)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].UserID != 4 || entries[0].IPAddress != "198.51.100.4" || entries[0].PageURL != "http://example.com/admin/logs" {
		t.Errorf("Request info not stored: %+v", entries[0])
	}
}

func TestCleanup_RemovesOldEntries(t *testing.T) {
	db, store := setupTestStore(t)
	now := time.Now().UTC()
	db.Create(&models.LogEntry{Level: models.LevelError, Message: "old", CreatedOn: now.Add(-72 * time.Hour)})
	db.Create(&models.LogEntry{Level: models.LevelError, Message: "fresh", CreatedOn: now})

	Cleanup(context.Background(), store, CleanupConfig{MaxAge: 48 * time.Hour})

	entries := allEntries(t, db)
	if len(entries) != 1 || entries[0].Message != "fresh" {
		t.Errorf("Expected only the fresh entry to remain, got %+v", entries)
	}
}

func TestCleanup_TrimsWhenOverSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	store := logstore.New(db)
	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		db.Create(&models.LogEntry{Level: models.LevelError, Message: "entry", CreatedOn: now.Add(time.Duration(i) * time.Second)})
	}

	// Any file is bigger than one byte, so every pass trims
	Cleanup(context.Background(), store, CleanupConfig{DatabasePath: path, MaxDBSize: 1})

	var remaining int64
	db.Model(&models.LogEntry{}).Count(&remaining)
	if remaining >= 20 {
		t.Errorf("Expected entries to be trimmed, %d remain", remaining)
	}
}

func TestCleanupOldLogs_StopsOnCancel(t *testing.T) {
	_, store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		CleanupOldLogs(ctx, store, CleanupConfig{Interval: time.Hour})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("CleanupOldLogs should return after cancel")
	}
}

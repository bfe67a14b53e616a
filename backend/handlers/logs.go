package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/PhilHem/logstore/backend/config"
	"github.com/PhilHem/logstore/backend/logger"
	"github.com/PhilHem/logstore/backend/logstore"
	"github.com/PhilHem/logstore/backend/models"

	"gorm.io/gorm"
)

var Logs *logstore.Store

func InitLogs(db *gorm.DB) {
	Logs = logstore.New(db)
}

type LogsResponse struct {
	Logs       []models.LogEntry `json:"logs"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// parseFilter reads level, search, from and to (RFC 3339) from the query
// string.
func parseFilter(r *http.Request) (logstore.Filter, error) {
	var f logstore.Filter
	q := r.URL.Query()

	if v := q.Get("level"); v != "" {
		level, err := models.ParseLevel(v)
		if err != nil {
			return f, err
		}
		f.Level = &level
	}
	f.Message = q.Get("search")

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s time: %q", bound.name, v)
		}
		*bound.dst = &t
	}
	return f, nil
}

func parseID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid log id: %q", r.PathValue("id"))
	}
	return uint(id), nil
}

func storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, logstore.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.ErrorContext(r.Context(), op+" failed", "source", "logs", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}

func GetLogs(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Pagination, 1-based on the wire
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > config.C.Logs.MaxPageSize {
		perPage = config.C.Logs.DefaultPageSize
	}
	f.PageIndex = page - 1
	f.PageSize = perPage

	result, err := Logs.Query(r.Context(), f)
	if err != nil {
		storeError(w, r, "query logs", err)
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{
		Logs:       result.Entries,
		Total:      result.Total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: result.TotalPages(),
	})
}

func GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := Logs.GetByID(r.Context(), id)
	if err != nil {
		storeError(w, r, "get log", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Log entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func DeleteLog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := Logs.GetByID(r.Context(), id)
	if err != nil {
		storeError(w, r, "get log", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Log entry not found")
		return
	}
	if err := Logs.Delete(r.Context(), entry); err != nil {
		storeError(w, r, "delete log", err)
		return
	}

	slog.InfoContext(logger.SkipStore(r.Context()), "log entry deleted", "source", "logs", "log_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type BulkDeleteRequest struct {
	IDs []uint `json:"ids"`
	All bool   `json:"all"`
}

func DeleteLogs(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if req.All {
		deleted, err := Logs.ClearAll(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "clear logs interrupted", "source", "logs", "deleted", deleted, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"deleted": deleted, "error": "Clear interrupted"})
			return
		}
		slog.InfoContext(logger.SkipStore(r.Context()), "logs cleared", "source", "logs", "deleted", deleted)
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": int64(deleted)})
		return
	}

	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "No IDs provided")
		return
	}

	deleted, err := Logs.DeleteByIDs(r.Context(), req.IDs)
	if err != nil {
		storeError(w, r, "delete logs", err)
		return
	}
	slog.InfoContext(logger.SkipStore(r.Context()), "log entries deleted", "source", "logs", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func GetLogTimeline(w http.ResponseWriter, r *http.Request) {
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "hour"
	}

	results, err := Logs.Timeline(r.Context(), interval, 100)
	if err != nil {
		storeError(w, r, "log timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ExportLogs streams matching entries as NDJSON, zstd-compressed when
// compress=zstd is given.
func ExportLogs(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	compress := r.URL.Query().Get("compress") == "zstd"
	filename := "logs.ndjson"
	if compress {
		filename += ".zst"
		w.Header().Set("Content-Type", "application/zstd")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	n, err := Logs.Export(r.Context(), w, f, compress)
	if err != nil {
		// Headers are already out, all we can do is record it
		slog.ErrorContext(r.Context(), "log export failed", "source", "logs", "written", n, "error", err)
		return
	}
	slog.InfoContext(r.Context(), "logs exported", "source", "logs", "count", n, "compressed", compress)
}

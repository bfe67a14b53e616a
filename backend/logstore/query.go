package logstore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/PhilHem/logstore/backend/models"

	"gorm.io/gorm"
)

// Filter selects entries for Query and Export. Nil or empty fields do not
// filter. Message matches case-insensitively against the message or the
// exception text.
type Filter struct {
	From    *time.Time
	To      *time.Time
	Message string
	Level   *models.Level

	// PageIndex is zero-based.
	PageIndex int
	PageSize  int
}

type Page struct {
	Entries   []models.LogEntry `json:"entries"`
	Total     int64             `json:"total"`
	PageIndex int               `json:"page_index"`
	PageSize  int               `json:"page_size"`
}

func (p *Page) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

func (p *Page) HasPrevious() bool { return p.PageIndex > 0 }

func (p *Page) HasNext() bool { return p.PageIndex < p.TotalPages()-1 }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// apply adds the filter's WHERE clauses to q.
func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.From != nil {
		q = q.Where("created_on >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_on <= ?", f.To.UTC())
	}
	if f.Level != nil {
		q = q.Where("level = ?", *f.Level)
	}
	if f.Message != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(f.Message)) + "%"
		q = q.Where(`(LOWER(message) LIKE ? ESCAPE '\' OR LOWER(exception) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return q
}

// Query returns one page of matching entries, newest first, together with
// the total number of matches. A page index past the end yields an empty
// page.
func (s *Store) Query(ctx context.Context, f Filter) (*Page, error) {
	if f.PageIndex < 0 {
		return nil, fmt.Errorf("%w: negative page index %d", ErrInvalidArgument, f.PageIndex)
	}
	if f.PageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidArgument, f.PageSize)
	}

	q := f.apply(s.db.WithContext(ctx).Model(&models.LogEntry{})).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	entries := []models.LogEntry{}
	// An offset that would overflow int is past any possible total.
	if f.PageIndex <= math.MaxInt/f.PageSize && int64(f.PageIndex*f.PageSize) < total {
		err := q.Order("created_on DESC").Order("id DESC").
			Offset(f.PageIndex * f.PageSize).
			Limit(f.PageSize).
			Find(&entries).Error
		if err != nil {
			return nil, err
		}
	}

	return &Page{
		Entries:   entries,
		Total:     total,
		PageIndex: f.PageIndex,
		PageSize:  f.PageSize,
	}, nil
}

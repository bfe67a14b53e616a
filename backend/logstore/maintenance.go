package logstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/PhilHem/logstore/backend/models"
)

// DeleteOlderThan removes entries created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_on < ?", cutoff.UTC()).Delete(&models.LogEntry{})
	return result.RowsAffected, result.Error
}

// TrimOldest removes the oldest fraction (0 < fraction <= 1) of all entries,
// rounded up.
func (s *Store) TrimOldest(ctx context.Context, fraction float64) (int64, error) {
	if fraction <= 0 || fraction > 1 {
		return 0, fmt.Errorf("%w: trim fraction %v out of range", ErrInvalidArgument, fraction)
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.LogEntry{}).Count(&total).Error; err != nil {
		return 0, err
	}
	n := int(math.Ceil(float64(total) * fraction))
	if n == 0 {
		return 0, nil
	}

	oldest := s.db.WithContext(ctx).Model(&models.LogEntry{}).Select("id").Order("created_on ASC").Order("id ASC").Limit(n)
	result := s.db.WithContext(ctx).Where("id IN (?)", oldest).Delete(&models.LogEntry{})
	return result.RowsAffected, result.Error
}

type TimelinePoint struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

var timelineFormats = map[string]string{
	"minute": "%Y-%m-%d %H:%M",
	"hour":   "%Y-%m-%d %H:00",
	"day":    "%Y-%m-%d",
}

// Timeline counts entries per minute, hour or day bucket in ascending order.
// Unknown intervals fall back to hour.
func (s *Store) Timeline(ctx context.Context, interval string, limit int) ([]TimelinePoint, error) {
	format, ok := timelineFormats[interval]
	if !ok {
		format = timelineFormats["hour"]
	}
	if limit < 1 {
		limit = 100
	}

	results := []TimelinePoint{}
	err := s.db.WithContext(ctx).Model(&models.LogEntry{}).
		Select("strftime(?, created_on) as time, count(*) as count", format).
		Group("time").
		Order("time ASC").
		Limit(limit).
		Scan(&results).Error
	return results, err
}

package models

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Level is the severity of a log entry. Higher values are more severe.
type Level int

const (
	LevelDebug       Level = 10
	LevelInformation Level = 20
	LevelWarning     Level = 30
	LevelError       Level = 40
	LevelFatal       Level = 50
)

// Levels lists every level in ascending severity.
var Levels = []Level{LevelDebug, LevelInformation, LevelWarning, LevelError, LevelFatal}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "Debug"
	case LevelInformation:
		return "Information"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	case LevelFatal:
		return "Fatal"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel accepts a level name (case-insensitive, "info"/"warn" allowed)
// or its numeric value.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "information", "info":
		return LevelInformation, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		for _, l := range Levels {
			if int(l) == n {
				return l, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown log level: %q", s)
}

// LevelFromSlog maps a slog level onto the stored severity scale.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInformation
	case l < slog.LevelError:
		return LevelWarning
	case l < slog.LevelError+4:
		return LevelError
	default:
		return LevelFatal
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

type LogEntry struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Level       Level     `json:"level" gorm:"index;not null"`
	Message     string    `json:"message" gorm:"type:text;not null"`
	Exception   string    `json:"exception" gorm:"type:text;not null"`
	IPAddress   string    `json:"ip_address" gorm:"size:64;not null"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	PageURL     string    `json:"page_url" gorm:"type:text;not null"`
	ReferrerURL string    `json:"referrer_url" gorm:"type:text;not null"`
	CreatedOn   time.Time `json:"created_on" gorm:"index;not null"`
}

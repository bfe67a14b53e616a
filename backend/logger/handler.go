package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PhilHem/logstore/backend/logstore"
	"github.com/PhilHem/logstore/backend/models"
)

// DBHandler is a slog.Handler that prints JSON to out and stores each record
// as a log entry. An error-valued "error" attribute becomes the entry's
// cause; request metadata is taken from the context.
type DBHandler struct {
	store       *logstore.Store
	jsonHandler slog.Handler
	attrs       []slog.Attr
}

func NewDBHandler(store *logstore.Store, out io.Writer) *DBHandler {
	return &DBHandler{
		store:       store,
		jsonHandler: slog.NewJSONHandler(out, nil),
		attrs:       []slog.Attr{},
	}
}

type skipStoreKey struct{}

// SkipStore marks ctx so records logged with it are printed but not stored.
// Deletion audit lines use it, otherwise clearing the store would leave the
// "cleared" record behind.
func SkipStore(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipStoreKey{}, true)
}

func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.store.IsLevelEnabled(models.LevelFromSlog(level))
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	// Write to stdout
	_ = h.jsonHandler.Handle(ctx, r)
	if skip, _ := ctx.Value(skipStoreKey{}).(bool); skip {
		return nil
	}

	cause := logstore.Cause{}
	var extra strings.Builder

	collect := func(a slog.Attr) bool {
		if a.Key == "error" {
			switch v := a.Value.Any().(type) {
			case error:
				cause = logstore.Classify(v)
				return true
			case string:
				cause = logstore.Detail(v)
				return true
			}
		}
		fmt.Fprintf(&extra, " %s=%v", a.Key, a.Value.Resolve().Any())
		return true
	}

	// Include handler-level attrs
	for _, a := range h.attrs {
		collect(a)
	}
	// Include record attrs
	r.Attrs(collect)

	if cause.Cancelled() {
		return nil
	}

	// The insert runs on a context that outlives the request, cancellation
	// of the request must not drop the entry.
	_, err := h.store.Insert(context.WithoutCancel(ctx), models.LevelFromSlog(r.Level),
		r.Message+extra.String(), cause, logstore.RequestInfoFrom(ctx))
	return err
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &DBHandler{
		store:       h.store,
		jsonHandler: h.jsonHandler.WithAttrs(attrs),
		attrs:       newAttrs,
	}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}

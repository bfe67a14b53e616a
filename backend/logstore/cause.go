package logstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Cause is the classified error attached to a log entry: either a
// cancellation, which is not worth recording, or a rendered error detail.
type Cause struct {
	cancelled bool
	detail    string
}

// Cancelled is the cause for work that was stopped on purpose.
var Cancelled = Cause{cancelled: true}

// Detail wraps already rendered error text verbatim.
func Detail(text string) Cause {
	return Cause{detail: text}
}

// Classify turns err into a Cause. context.Canceled and
// http.ErrAbortHandler anywhere in the chain count as cancellation.
func Classify(err error) Cause {
	if err == nil {
		return Cause{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrAbortHandler) {
		return Cancelled
	}
	return Cause{detail: Render(err)}
}

func (c Cause) Cancelled() bool { return c.cancelled }

func (c Cause) Text() string { return c.detail }

// Render formats err followed by one line per nested cause, depth first:
//
//	outer: inner
//	 ---> *fs.PathError: open x: no such file
func Render(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(err.Error())
	renderCauses(&b, err, 1)
	return b.String()
}

func renderCauses(b *strings.Builder, err error, depth int) {
	var causes []error
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if inner := u.Unwrap(); inner != nil {
			causes = []error{inner}
		}
	case interface{ Unwrap() []error }:
		causes = u.Unwrap()
	}

	for _, cause := range causes {
		if cause == nil {
			continue
		}
		fmt.Fprintf(b, "\n%s---> %T: %s", strings.Repeat(" ", depth), cause, cause.Error())
		renderCauses(b, cause, depth+1)
	}
}

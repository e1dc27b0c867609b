// Package cronexpr wraps robfig/cron/v3's standard five-field parser
// with the IANA-zone-aware "next instant after base" operation the
// schedule source needs.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mjarkko/scripter/internal/domain"
)

// NextAfter parses expr as a standard five-field cron expression
// (minute hour dom month dow), localizes base into tz (falling back to
// the process-local zone when tz is empty), and returns the next
// instant strictly after base matching the expression, converted back
// to UTC.
func NextAfter(expr, tz string, base time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	loc := time.Local
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("load location %q: %w", tz, err)
		}
		loc = l
	}

	next := schedule.Next(base.In(loc))
	return next.UTC(), nil
}

// Validate reports whether expr parses as a standard five-field cron
// expression, rejecting it at the boundary (CLI add-cron, schedule
// creation) rather than letting a malformed expression sit in storage
// until a schedule source tries to evaluate it. The returned error
// wraps domain.ErrInvalidCron so callers can match it with errors.Is.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("%w: %q: %s", domain.ErrInvalidCron, expr, err)
	}
	return nil
}

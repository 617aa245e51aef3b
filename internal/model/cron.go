package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	parser5 = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	parser6 = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// ParseFlexible validates a cron expression with 5 or 6 fields
// (the 6 variant starts with seconds) or a @ descriptor.
// Returns number of fields, a descriptor counts as 5.
func ParseFlexible(expr string) (int, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, fmt.Errorf("empty cron expression")
	}

	// Macros / @every handled by ParseStandard
	if strings.HasPrefix(e, "@") {
		if _, err := cron.ParseStandard(e); err != nil {
			return 0, err
		}
		return 5, nil
	}

	var err error
	switch n := len(strings.Fields(e)); n {
	case 5:
		_, err = parser5.Parse(e)
	case 6:
		_, err = parser6.Parse(e)
	default:
		return 0, fmt.Errorf("invalid field count: got %d (want 5 or 6)", n)
	}
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(e)), nil
}

// NextRun returns the next activation of expr after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	fields, err := ParseFlexible(expr)
	if err != nil {
		return time.Time{}, err
	}
	e := strings.TrimSpace(expr)
	var schedule cron.Schedule
	switch {
	case strings.HasPrefix(e, "@"):
		schedule, err = cron.ParseStandard(e)
	case fields == 6:
		schedule, err = parser6.Parse(e)
	default:
		schedule, err = parser5.Parse(e)
	}
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}

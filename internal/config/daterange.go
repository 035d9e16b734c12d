package config

import (
	"strings"
	"time"

	"github.com/marcin-skalski/timereport/internal/timesheet"
)

var (
	zonedLayouts = []string{time.RFC3339Nano}
	naiveLayouts = []string{"2006-01-02T15:04:05", "2006-01-02"}
)

// ParseDateRange parses the report bounds. Values without an offset are
// taken as UTC. An end bound at exactly midnight is widened to the last
// instant of that day so that date-only ends are inclusive.
func ParseDateRange(start, end string) (timesheet.DateRange, error) {
	if strings.TrimSpace(start) == "" {
		return timesheet.DateRange{}, invalid("report.start", "required")
	}
	if strings.TrimSpace(end) == "" {
		return timesheet.DateRange{}, invalid("report.end", "required")
	}

	s, err := parseBound(start)
	if err != nil {
		return timesheet.DateRange{}, invalid("report.start", "%v", err)
	}
	e, err := parseBound(end)
	if err != nil {
		return timesheet.DateRange{}, invalid("report.end", "%v", err)
	}

	if e.Hour() == 0 && e.Minute() == 0 && e.Second() == 0 && e.Nanosecond() == 0 {
		e = e.Add(24*time.Hour - time.Nanosecond)
	}
	if e.Before(s) {
		return timesheet.DateRange{}, invalid("report.end", "%s is before start %s", e.Format(time.RFC3339), s.Format(time.RFC3339))
	}

	return timesheet.DateRange{Start: s, End: e}, nil
}

func parseBound(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var firstErr error
	for _, layout := range zonedLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		firstErr = err
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, firstErr
}

package timesheet

import (
	"errors"
	"fmt"
	"time"
)

var ErrMalformedTimestamp = errors.New("malformed timestamp")

type Worklog struct {
	AuthorID    string
	AuthorName  string
	Started     string
	DurationSec int
}

// IssueWorklogs pairs an issue key with the worklogs fetched for it.
type IssueWorklogs struct {
	Key      string
	Worklogs []Worklog
}

// DateRange is a closed interval; both ends are inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

type Aggregates struct {
	UserHours      map[string]float64
	UserNames      map[string]string
	IssueHours     map[string]float64
	UserIssueHours map[string]map[string]float64
	// Counted is the number of entries inside the range.
	Counted int
	// Skipped counts entries dropped for a malformed timestamp or a
	// negative duration.
	Skipped int
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a worklog start time. Timestamps without an offset
// are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// Aggregate folds worklogs inside r into per-user, per-issue and
// per-(user, issue) hour tables. Each entry is assumed to appear once.
func Aggregate(issues []IssueWorklogs, r DateRange) Aggregates {
	agg := Aggregates{
		UserHours:      make(map[string]float64),
		UserNames:      make(map[string]string),
		IssueHours:     make(map[string]float64),
		UserIssueHours: make(map[string]map[string]float64),
	}

	for _, iw := range issues {
		for _, wl := range iw.Worklogs {
			started, err := ParseTimestamp(wl.Started)
			if err != nil || wl.DurationSec < 0 {
				agg.Skipped++
				continue
			}
			if !r.Contains(started) {
				continue
			}

			agg.Counted++
			hours := float64(wl.DurationSec) / 3600
			agg.UserHours[wl.AuthorID] += hours
			agg.UserNames[wl.AuthorID] = wl.AuthorName
			agg.IssueHours[iw.Key] += hours

			cells, ok := agg.UserIssueHours[wl.AuthorID]
			if !ok {
				cells = make(map[string]float64)
				agg.UserIssueHours[wl.AuthorID] = cells
			}
			cells[iw.Key] += hours
		}
	}

	return agg
}

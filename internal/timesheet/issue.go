// Package timesheet aggregates Jira worklogs into hour tables, reconciles
// Story estimates from their Subtasks and mines deviation reasons from
// comments. Everything here is pure over the records it is given; fetching
// lives in the caller.
package timesheet

import (
	"strings"
	"time"
)

type IssueType string

const (
	TypeStory   IssueType = "Story"
	TypeSubtask IssueType = "Subtask"
	TypeEpic    IssueType = "Epic"
)

// NormalizeIssueType maps Jira issue type names onto the types the
// reconciler cares about. Jira Cloud reports subtasks as "Sub-task" on
// classic projects and "Subtask" on team-managed ones.
func NormalizeIssueType(name string) IssueType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "story":
		return TypeStory
	case "subtask", "sub-task", "sub task":
		return TypeSubtask
	case "epic":
		return TypeEpic
	default:
		return IssueType(strings.TrimSpace(name))
	}
}

type Issue struct {
	Key              string
	Summary          string
	Type             IssueType
	Status           string
	Assignee         string
	OriginalEstimate *time.Duration
	ParentKey        string
	SubtaskKeys      []string
}

// EstimateHours returns the original estimate in hours, 0 when unset.
func (i Issue) EstimateHours() float64 {
	if i.OriginalEstimate == nil {
		return 0
	}
	return i.OriginalEstimate.Hours()
}

// Index is an issue lookup keyed by issue key.
type Index map[string]Issue

func NewIndex(issues []Issue) Index {
	idx := make(Index, len(issues))
	for _, is := range issues {
		idx[is.Key] = is
	}
	return idx
}

// StatusSet is a case-insensitive set of status names.
type StatusSet map[string]struct{}

func NewStatusSet(names ...string) StatusSet {
	s := make(StatusSet, len(names))
	for _, n := range names {
		n = normalizeStatus(n)
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s StatusSet) Contains(name string) bool {
	_, ok := s[normalizeStatus(name)]
	return ok
}

func normalizeStatus(name string) string {
	name = strings.TrimSpace(name)
	// Jira installs differ between ASCII and typographic apostrophes.
	name = strings.ReplaceAll(name, "’", "'")
	return strings.ToLower(name)
}

// DefaultExcludedStatuses are statuses whose subtasks never count toward a
// Story rollup.
var DefaultExcludedStatuses = []string{"Won't Do", "Won't Fix", "Cancelled"}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

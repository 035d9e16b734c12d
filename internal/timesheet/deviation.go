package timesheet

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// An issue qualifies once actual/estimate exceeds ratioNum/ratioDen (1.2).
	ratioNum = 6
	ratioDen = 5
	// MaxReasonLength bounds a deviation reason, ellipsis included.
	MaxReasonLength = 200
)

var deviationKeywords = []string{
	"estimate",
	"time",
	"hours",
	"deviation",
	"took longer",
	"delay",
	"delayed",
	"blocked",
	"blocker",
	"underestimate",
	"overestimate",
}

// CommentSource supplies the comments of a single issue in API order.
type CommentSource interface {
	Comments(ctx context.Context, issueKey string) ([]Comment, error)
}

// FetchFailure is an issue whose comments could not be loaded.
type FetchFailure struct {
	Key string
	Err error
}

// Qualifies reports whether an issue overran its estimate by more than 20%.
// Under-runs never qualify.
//
// Both figures go back to whole seconds before comparing, since worklogs
// and estimates are recorded in seconds and summed hours carry float error.
// An actual of exactly 1.2x the estimate does not qualify.
func Qualifies(estimate, actual float64) bool {
	est, act := toSeconds(estimate), toSeconds(actual)
	if est <= 0 || act <= est {
		return false
	}
	return act*ratioDen > est*ratioNum
}

func toSeconds(hours float64) int64 {
	return int64(math.Round(hours * 3600))
}

type DeviationExtractor struct {
	comments CommentSource
}

func NewDeviationExtractor(comments CommentSource) *DeviationExtractor {
	return &DeviationExtractor{comments: comments}
}

// Extract inspects the comments of every qualifying issue, one fetch per
// issue in key order. A qualifying issue with no matching comment maps to
// "". Issues that do not qualify, or whose comments failed to load, are
// absent from the result; the latter are returned as failures.
func (e *DeviationExtractor) Extract(ctx context.Context, issueHours map[string]float64, index Index) (map[string]string, []FetchFailure) {
	keys := make([]string, 0, len(issueHours))
	for k := range issueHours {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reasons := make(map[string]string)
	var failures []FetchFailure
	for _, key := range keys {
		is, ok := index[key]
		if !ok || !Qualifies(is.EstimateHours(), issueHours[key]) {
			continue
		}

		comments, err := e.comments.Comments(ctx, key)
		if err != nil {
			failures = append(failures, FetchFailure{Key: key, Err: err})
			continue
		}
		reasons[key] = FindReason(comments)
	}
	return reasons, failures
}

// FindReason returns the first comment mentioning a deviation keyword,
// truncated to MaxReasonLength runes, or "" when none does.
func FindReason(comments []Comment) string {
	for _, c := range comments {
		text := strings.TrimSpace(c.PlainText())
		if text == "" {
			continue
		}
		if hasDeviationKeyword(text) {
			return truncate(text, MaxReasonLength)
		}
	}
	return ""
}

func hasDeviationKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range deviationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const ellipsis = "..."
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-len(ellipsis)]), " ") + ellipsis
}

package timesheet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComments struct {
	byKey map[string][]Comment
	errs  map[string]error
	calls []string
}

func (f *fakeComments) Comments(_ context.Context, key string) ([]Comment, error) {
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.byKey[key], nil
}

func TestQualifies(t *testing.T) {
	tests := []struct {
		name     string
		estimate float64
		actual   float64
		want     bool
	}{
		{"exactly 20 percent over", 10, 12, false},
		{"just over 20 percent", 10, 12.001, true},
		{"30 percent over", 10, 13, true},
		{"under-run", 10, 5, false},
		{"on estimate", 10, 10, false},
		{"no estimate", 0, 13, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Qualifies(tt.estimate, tt.actual))
		})
	}
}

// Actuals summed from several worklogs must not cross the 1.2x boundary
// through float error.
func TestQualifies_ExactBoundaryFromWorklogs(t *testing.T) {
	r := mustRange(t, "2025-05-01T00:00:00Z", "2025-05-31T23:59:59Z")

	for estSec := 900; estSec <= 40*3600; estSec += 900 {
		actSec := estSec * 6 / 5
		// Split the actual over three entries so the hours are summed.
		third := actSec / 3
		entries := []Worklog{
			{AuthorID: "u1", Started: "2025-05-02T09:00:00Z", DurationSec: third},
			{AuthorID: "u1", Started: "2025-05-03T09:00:00Z", DurationSec: third},
			{AuthorID: "u2", Started: "2025-05-04T09:00:00Z", DurationSec: actSec - 2*third},
		}
		agg := Aggregate([]IssueWorklogs{{Key: "A-1", Worklogs: entries}}, r)
		estimate := float64(estSec) / 3600

		assert.False(t, Qualifies(estimate, agg.IssueHours["A-1"]),
			"estimate %.2fh actual %.2fh", estimate, agg.IssueHours["A-1"])

		entries[0].DurationSec++
		agg = Aggregate([]IssueWorklogs{{Key: "A-1", Worklogs: entries}}, r)
		assert.True(t, Qualifies(estimate, agg.IssueHours["A-1"]),
			"one second over: estimate %.2fh", estimate)
	}
}

func TestQualifies_KnownBoundaryValues(t *testing.T) {
	r := mustRange(t, "2025-05-01T00:00:00Z", "2025-05-31T23:59:59Z")
	for _, tt := range []struct{ estimate, actual float64 }{{9, 10.8}, {2.25, 2.7}} {
		agg := Aggregate([]IssueWorklogs{{Key: "A-1", Worklogs: []Worklog{
			{AuthorID: "u1", Started: "2025-05-02T09:00:00Z", DurationSec: int(tt.actual * 3600 / 2)},
			{AuthorID: "u1", Started: "2025-05-05T09:00:00Z", DurationSec: int(tt.actual * 3600 / 2)},
		}}}, r)

		assert.False(t, Qualifies(tt.estimate, agg.IssueHours["A-1"]), "%vh vs %vh", tt.estimate, tt.actual)
	}
}

func TestExtract_FirstKeywordCommentWins(t *testing.T) {
	src := &fakeComments{byKey: map[string][]Comment{
		"PRJ-1": {
			{Body: "LGTM"},
			{Body: "We were blocked waiting on API access"},
			{Body: "Took longer than estimate"},
		},
	}}
	index := NewIndex([]Issue{{Key: "PRJ-1", OriginalEstimate: hours(10)}})

	reasons, failures := NewDeviationExtractor(src).Extract(context.Background(), map[string]float64{"PRJ-1": 13}, index)

	assert.Empty(t, failures)
	assert.Equal(t, map[string]string{"PRJ-1": "We were blocked waiting on API access"}, reasons)
}

func TestExtract_OnlyQualifyingIssuesFetchComments(t *testing.T) {
	src := &fakeComments{byKey: map[string][]Comment{
		"PRJ-2": {{Body: "nothing relevant"}},
	}}
	index := NewIndex([]Issue{
		{Key: "PRJ-1", OriginalEstimate: hours(10)},
		{Key: "PRJ-2", OriginalEstimate: hours(10)},
		{Key: "PRJ-3"},
	})
	issueHours := map[string]float64{"PRJ-1": 12, "PRJ-2": 12.001, "PRJ-3": 50, "PRJ-4": 10}

	reasons, failures := NewDeviationExtractor(src).Extract(context.Background(), issueHours, index)

	assert.Empty(t, failures)
	assert.Equal(t, []string{"PRJ-2"}, src.calls)
	v, ok := reasons["PRJ-2"]
	assert.True(t, ok, "inspected issue maps to an empty reason")
	assert.Empty(t, v)
	assert.NotContains(t, reasons, "PRJ-1")
}

func TestExtract_FetchFailureLeavesIssueAbsent(t *testing.T) {
	boom := errors.New("status 500")
	src := &fakeComments{
		byKey: map[string][]Comment{"PRJ-2": {{Body: "delayed by review"}}},
		errs:  map[string]error{"PRJ-1": boom},
	}
	index := NewIndex([]Issue{
		{Key: "PRJ-1", OriginalEstimate: hours(1)},
		{Key: "PRJ-2", OriginalEstimate: hours(1)},
	})

	reasons, failures := NewDeviationExtractor(src).Extract(context.Background(), map[string]float64{"PRJ-1": 3, "PRJ-2": 3}, index)

	require.Len(t, failures, 1)
	assert.Equal(t, "PRJ-1", failures[0].Key)
	assert.ErrorIs(t, failures[0].Err, boom)
	assert.Equal(t, map[string]string{"PRJ-2": "delayed by review"}, reasons)
}

func TestFindReason_MatchesDocumentBodies(t *testing.T) {
	doc := &Node{Type: "doc", Content: []Node{
		{Type: "heading", Content: []Node{{Type: "text", Text: "Blocked"}}},
		{Type: "paragraph", Content: []Node{
			{Type: "text", Text: "Waiting on the "},
			{Type: "mention", Text: "@ops"},
			{Type: "text", Text: "vendor caused a DELAY"},
		}},
	}}

	assert.Equal(t, "Waiting on the vendor caused a DELAY", FindReason([]Comment{{Doc: doc}}))
}

func TestFindReason_Truncates(t *testing.T) {
	long := "blocked " + strings.Repeat("x", 300)

	got := FindReason([]Comment{{Body: long}})

	assert.Equal(t, MaxReasonLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, "blocked x"))
}

func TestFindReason_NoMatch(t *testing.T) {
	assert.Empty(t, FindReason([]Comment{{Body: "LGTM"}, {Body: ""}}))
	assert.Empty(t, FindReason(nil))
}

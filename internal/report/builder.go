package report

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/marcin-skalski/timereport/internal/metrics"
	"github.com/marcin-skalski/timereport/internal/timesheet"
)

// Source is the issue tracker the report is built from.
type Source interface {
	SearchIssues(ctx context.Context, jql string) ([]timesheet.Issue, error)
	Worklogs(ctx context.Context, issueKey string) ([]timesheet.Worklog, error)
	Comments(ctx context.Context, issueKey string) ([]timesheet.Comment, error)
}

type Params struct {
	Range            timesheet.DateRange
	Projects         []string
	ExcludedStatuses timesheet.StatusSet
	Participants     []timesheet.Participant
}

// Report is everything the renderer needs. It is built once per run and
// treated as read-only afterwards.
type Report struct {
	Range    timesheet.DateRange
	Projects []string
	JQL      string

	// Fetched is the issue index as returned by Jira; Issues is the
	// reconciled one.
	Fetched timesheet.Index
	Issues  timesheet.Index

	UserHours      map[string]float64
	UserNames      map[string]string
	IssueHours     map[string]float64
	UserIssueHours map[string]map[string]float64
	UserEstimates  map[string]float64
	Availability   map[string]float64
	Reasons        map[string]string
	Rollups        []timesheet.StoryRollup

	// Failures lists per-issue fetches that were left out.
	Failures []*PartialFetchError
}

type Builder struct {
	src     Source
	params  Params
	metrics metrics.Recorder
	logger  *slog.Logger
}

func NewBuilder(src Source, params Params, rec metrics.Recorder, logger *slog.Logger) *Builder {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if params.ExcludedStatuses == nil {
		params.ExcludedStatuses = timesheet.NewStatusSet(timesheet.DefaultExcludedStatuses...)
	}
	return &Builder{src: src, params: params, metrics: rec, logger: logger}
}

// Build fetches issues, worklogs and comments one request at a time and
// runs them through the aggregation engine. Only a failed issue search is
// fatal; per-issue failures are recorded on the report.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	p := b.params
	jql := BuildJQL(p.Projects, p.Range)
	b.logger.Info("searching issues", "jql", jql)

	issues, err := b.src.SearchIssues(ctx, jql)
	if err != nil {
		return nil, &FatalFetchError{JQL: jql, Err: err}
	}

	rep := &Report{
		Range:    p.Range,
		Projects: p.Projects,
		JQL:      jql,
	}

	// Backfilled parents carry no worklogs in range, so only searched
	// issues get a worklog fetch.
	searched := issues
	parents := b.fetchMissingParents(ctx, rep, issues)
	issues = append(issues[:len(issues):len(issues)], parents...)
	rep.Fetched = timesheet.NewIndex(issues)
	b.logger.Info("fetched issues", "count", len(issues), "backfilled_parents", len(parents))

	worklogs := make([]timesheet.IssueWorklogs, 0, len(searched))
	for i, is := range searched {
		wls, err := b.src.Worklogs(ctx, is.Key)
		if err != nil {
			rep.addFailure(b, "worklog", is.Key, err)
			continue
		}
		worklogs = append(worklogs, timesheet.IssueWorklogs{Key: is.Key, Worklogs: wls})
		if (i+1)%10 == 0 || i+1 == len(searched) {
			b.logger.Info("processed worklogs", "done", i+1, "total", len(searched))
		}
	}

	agg := timesheet.Aggregate(worklogs, p.Range)
	b.metrics.RecordWorklogs(agg.Counted, agg.Skipped)
	if agg.Skipped > 0 {
		b.logger.Debug("skipped unreadable worklogs", "count", agg.Skipped)
	}

	rec := timesheet.Reconcile(issues, agg.IssueHours, p.ExcludedStatuses)
	for _, r := range rec.Rollups {
		b.logger.Debug("story rolled up from subtasks",
			"story", r.StoryKey, "children", r.ChildKeys, "excluded", r.ExcludedKeys,
			"estimate_h", r.Estimate.Hours(), "actual_h", r.Actual, "actual_applied", r.ActualApplied)
	}

	// Backfilled Stories only feed the rollup section; their rolled-up
	// hours would count the subtasks' time a second time in the ticket
	// totals.
	for _, parent := range parents {
		delete(rec.IssueHours, parent.Key)
	}

	rep.Issues = rec.Issues
	rep.IssueHours = rec.IssueHours
	rep.Rollups = rec.Rollups
	rep.UserHours = agg.UserHours
	rep.UserNames = agg.UserNames
	rep.UserIssueHours = agg.UserIssueHours
	rep.UserEstimates = timesheet.AttributeEstimates(agg.UserIssueHours, rec.Issues)
	rep.Availability = timesheet.Availability(agg.UserNames, p.Participants)

	reasons, failures := timesheet.NewDeviationExtractor(b.src).Extract(ctx, rec.IssueHours, rec.Issues)
	for _, f := range failures {
		rep.addFailure(b, "comment", f.Key, f.Err)
	}
	rep.Reasons = reasons

	b.logger.Info("report built",
		"users", len(rep.UserHours), "issues", len(rep.IssueHours),
		"rollups", len(rep.Rollups), "reasons", countNonEmpty(reasons), "failures", len(rep.Failures))
	return rep, nil
}

// fetchMissingParents loads Story parents of fetched subtasks that the
// search did not return, so their rollups can still be computed. A failed
// lookup is recorded on the report and the run goes on without them.
func (b *Builder) fetchMissingParents(ctx context.Context, rep *Report, issues []timesheet.Issue) []timesheet.Issue {
	have := make(map[string]bool, len(issues))
	for _, is := range issues {
		have[is.Key] = true
	}
	missing := make(map[string]bool)
	for _, is := range issues {
		if is.Type == timesheet.TypeSubtask && is.ParentKey != "" && !have[is.ParentKey] {
			missing[is.ParentKey] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parents, err := b.src.SearchIssues(ctx, keyJQL(keys))
	if err != nil {
		rep.addFailure(b, "search", strings.Join(keys, ","), err)
		return nil
	}
	return parents
}

func (r *Report) addFailure(b *Builder, endpoint, key string, err error) {
	pf := &PartialFetchError{Endpoint: endpoint, IssueKey: key, Err: err}
	r.Failures = append(r.Failures, pf)
	b.metrics.RecordPartialFailure(endpoint)
	b.logger.Warn("skipping issue", "endpoint", endpoint, "issue", key, "err", err)
}

func countNonEmpty(m map[string]string) int {
	n := 0
	for _, v := range m {
		if v != "" {
			n++
		}
	}
	return n
}

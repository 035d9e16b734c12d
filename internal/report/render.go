package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/timereport/internal/config"
)

const ruleWidth = 80

// Section is one titled block of the report.
type Section struct {
	Title string
	Body  string
}

// Render lays the report out as text sections. It only reads r.
func Render(r *Report) []Section {
	sections := []Section{
		renderSummary(r),
		renderByMember(r),
		renderCapacity(r),
		renderByTicket(r),
	}
	if len(r.Rollups) > 0 {
		sections = append(sections, renderRollups(r))
	}
	sections = append(sections,
		renderMemberBreakdown(r),
		renderTicketBreakdown(r),
		renderReasons(r),
	)
	if len(r.Failures) > 0 {
		sections = append(sections, renderFailures(r))
	}
	return sections
}

// Text joins sections into the plain-text report.
func Text(sections []Section) string {
	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(rule + "\n")
		b.WriteString(s.Title + "\n")
		b.WriteString(rule + "\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatHours renders hours with a day equivalent once they reach a day.
func FormatHours(h float64) string {
	if h == 0 {
		return "0h"
	}
	days := h / config.HoursPerDay
	if days >= 1 {
		return fmt.Sprintf("%.1fh (%.1fd)", h, days)
	}
	return fmt.Sprintf("%.1fh", h)
}

func formatVariance(actual, estimate float64) string {
	if estimate <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%+.1fh", actual-estimate)
}

func accuracy(actual, estimate float64) float64 {
	return (1 - math.Abs(actual-estimate)/estimate) * 100
}

// col pads or truncates s to exactly w display cells.
func col(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "...")
	}
	return runewidth.FillRight(s, w)
}

func row(cells ...string) string {
	return strings.TrimRight(strings.Join(cells, " "), " ")
}

func dashes() string { return strings.Repeat("-", ruleWidth) }

func renderSummary(r *Report) Section {
	var b strings.Builder
	projects := "All projects"
	if len(r.Projects) > 0 {
		projects = strings.Join(r.Projects, ", ")
	}
	fmt.Fprintf(&b, "Period: %s to %s\n", r.Range.Start.Format("2006-01-02"), r.Range.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Projects: %s\n", projects)
	fmt.Fprintf(&b, "JQL: %s\n", r.JQL)
	fmt.Fprintf(&b, "Issues fetched: %d | Issues with logged time: %d | Team members: %d\n",
		len(r.Fetched), len(r.IssueHours), len(r.UserHours))
	return Section{Title: "JIRA TIME REPORT - ACTUALS vs ESTIMATES", Body: b.String()}
}

// usersByHours orders users by logged hours, highest first.
func (r *Report) usersByHours() []string {
	users := make([]string, 0, len(r.UserHours))
	for u := range r.UserHours {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		hi, hj := r.UserHours[users[i]], r.UserHours[users[j]]
		if hi != hj {
			return hi > hj
		}
		return r.displayName(users[i]) < r.displayName(users[j])
	})
	return users
}

func (r *Report) displayName(user string) string {
	if n := r.UserNames[user]; n != "" {
		return n
	}
	return user
}

func renderByMember(r *Report) Section {
	var b strings.Builder
	b.WriteString(row(col("Team Member", 30), col("Est Hours", 15), col("Act Hours", 15), col("Tickets", 8), "Variance") + "\n")
	b.WriteString(dashes() + "\n")

	var totalEst, totalAct float64
	for _, u := range r.usersByHours() {
		est := r.UserEstimates[u]
		act := r.UserHours[u]
		totalEst += est
		totalAct += act
		b.WriteString(row(
			col(r.displayName(u), 30),
			col(FormatHours(est), 15),
			col(FormatHours(act), 15),
			col(fmt.Sprint(len(r.UserIssueHours[u])), 8),
			formatVariance(act, est),
		) + "\n")
	}

	b.WriteString(dashes() + "\n")
	b.WriteString(row(
		col("TOTAL", 30),
		col(FormatHours(totalEst), 15),
		col(FormatHours(totalAct), 15),
		col(fmt.Sprint(len(r.IssueHours)), 8),
		formatVariance(totalAct, totalEst),
	) + "\n\n")

	n := len(r.UserHours)
	fmt.Fprintf(&b, "Team Members: %d\n", n)
	if n > 0 {
		fmt.Fprintf(&b, "Average Estimated Hours per Person: %s\n", FormatHours(totalEst/float64(n)))
		fmt.Fprintf(&b, "Average Actual Hours per Person: %s\n", FormatHours(totalAct/float64(n)))
	}
	if totalEst > 0 {
		fmt.Fprintf(&b, "Overall Estimation Accuracy: %.1f%%\n", accuracy(totalAct, totalEst))
	}
	return Section{Title: "ACTUALS vs ESTIMATES BY TEAM MEMBER", Body: b.String()}
}

func renderCapacity(r *Report) Section {
	var b strings.Builder
	b.WriteString(row(col("Team Member", 30), col("Available", 15), col("Actual", 15), "Utilization") + "\n")
	b.WriteString(dashes() + "\n")
	for _, u := range r.usersByHours() {
		avail := r.Availability[u]
		act := r.UserHours[u]
		util := "N/A"
		if avail > 0 {
			util = fmt.Sprintf("%.1f%%", act/avail*100)
		}
		b.WriteString(row(col(r.displayName(u), 30), col(FormatHours(avail), 15), col(FormatHours(act), 15), util) + "\n")
	}
	return Section{Title: "CAPACITY BY TEAM MEMBER", Body: b.String()}
}

func renderByTicket(r *Report) Section {
	var b strings.Builder
	b.WriteString(row(col("Ticket", 12), col("Summary", 35), col("Original Est", 14), col("Actual", 14), "Variance") + "\n")
	b.WriteString(dashes() + "\n")

	keys := make([]string, 0, len(r.IssueHours))
	for k := range r.IssueHours {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var totalEst, totalAct float64
	withEstimates, listed := 0, 0
	for _, k := range keys {
		is, ok := r.Issues[k]
		if !ok {
			continue
		}
		listed++
		est := is.EstimateHours()
		act := r.IssueHours[k]
		if est > 0 {
			totalEst += est
			withEstimates++
		}
		totalAct += act
		b.WriteString(row(col(k, 12), col(is.Summary, 35), col(FormatHours(est), 14), col(FormatHours(act), 14), formatVariance(act, est)) + "\n")
	}

	b.WriteString(dashes() + "\n")
	b.WriteString(row(col("TOTALS", 12), col("", 35), col(FormatHours(totalEst), 14), col(FormatHours(totalAct), 14),
		fmt.Sprintf("%+.1fh", totalAct-totalEst)) + "\n")
	if withEstimates > 0 {
		fmt.Fprintf(&b, "\nEstimation Accuracy: %.1f%%\n", accuracy(totalAct, totalEst))
		fmt.Fprintf(&b, "Tickets with Estimates: %d/%d\n", withEstimates, listed)
	}
	return Section{Title: "ACTUALS vs ESTIMATES BY TICKET", Body: b.String()}
}

func renderRollups(r *Report) Section {
	var b strings.Builder
	for _, ru := range r.Rollups {
		prevEst := "none"
		if ru.PreviousEstimate != nil {
			prevEst = FormatHours(ru.PreviousEstimate.Hours())
		}
		prevAct := "none"
		if ru.HadActual {
			prevAct = FormatHours(ru.PreviousActual)
		}
		actual := FormatHours(ru.Actual)
		if !ru.ActualApplied {
			actual = "unchanged"
		}
		fmt.Fprintf(&b, "%s - Estimated: %s (was %s) | Actual: %s (was %s)\n",
			ru.StoryKey, FormatHours(ru.Estimate.Hours()), prevEst, actual, prevAct)
		fmt.Fprintf(&b, "  Subtasks: %s\n", strings.Join(ru.ChildKeys, ", "))
		if len(ru.ExcludedKeys) > 0 {
			fmt.Fprintf(&b, "  Excluded: %s\n", strings.Join(ru.ExcludedKeys, ", "))
		}
	}
	return Section{Title: "STORY ESTIMATES ROLLED UP FROM SUBTASKS", Body: b.String()}
}

func renderMemberBreakdown(r *Report) Section {
	var b strings.Builder
	for i, u := range r.usersByHours() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s - Estimated: %s | Actual: %s\n",
			r.displayName(u), FormatHours(r.UserEstimates[u]), FormatHours(r.UserHours[u]))
		b.WriteString(dashes() + "\n")
		b.WriteString(row(col("Ticket", 12), col("Estimated", 14), col("Actual", 14), "Summary") + "\n")
		b.WriteString(dashes() + "\n")

		tickets := sortedByValue(r.UserIssueHours[u])
		for _, k := range tickets {
			is, ok := r.Issues[k]
			if !ok {
				continue
			}
			b.WriteString(row(col(k, 12), col(FormatHours(is.EstimateHours()), 14),
				col(FormatHours(r.UserIssueHours[u][k]), 14), col(is.Summary, 30)) + "\n")
		}
	}
	return Section{Title: "BREAKDOWN OF ACTUALS BY TEAM MEMBER ACROSS STORIES", Body: b.String()}
}

func renderTicketBreakdown(r *Report) Section {
	byIssue := make(map[string]map[string]float64)
	for u, issues := range r.UserIssueHours {
		for k, h := range issues {
			if byIssue[k] == nil {
				byIssue[k] = make(map[string]float64)
			}
			byIssue[k][u] = h
		}
	}

	var b strings.Builder
	first := true
	for _, k := range sortedByValue(r.IssueHours) {
		is, ok := r.Issues[k]
		if !ok {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		total := r.IssueHours[k]
		fmt.Fprintf(&b, "%s - Estimated: %s | Actual: %s\n", k, FormatHours(is.EstimateHours()), FormatHours(total))
		fmt.Fprintf(&b, "Summary: %s\n", is.Summary)
		b.WriteString(dashes() + "\n")
		b.WriteString(row(col("Team Member", 30), col("Hours", 14), "Percentage") + "\n")
		b.WriteString(dashes() + "\n")
		for _, u := range sortedByValue(byIssue[k]) {
			h := byIssue[k][u]
			pct := "N/A"
			if total > 0 {
				pct = fmt.Sprintf("%.1f%%", h/total*100)
			}
			b.WriteString(row(col(r.displayName(u), 30), col(FormatHours(h), 14), pct) + "\n")
		}
	}
	return Section{Title: "BREAKDOWN OF ACTUALS BY TICKET ACROSS TEAM MEMBERS", Body: b.String()}
}

func renderReasons(r *Report) Section {
	keys := make([]string, 0, len(r.Reasons))
	for k, reason := range r.Reasons {
		if reason != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	if len(keys) == 0 {
		b.WriteString("No deviation explanations found in comments.\n")
	}
	for _, k := range keys {
		est := r.Issues[k].EstimateHours()
		act := r.IssueHours[k]
		fmt.Fprintf(&b, "%s (%s, %+.0f%%): %s\n", k, formatVariance(act, est), (act-est)/est*100, r.Reasons[k])
	}
	return Section{Title: "DEVIATION REASONS (OVER 20% ABOVE ESTIMATE)", Body: b.String()}
}

func renderFailures(r *Report) Section {
	var b strings.Builder
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "%s: %s fetch failed, left out of the figures above\n", f.IssueKey, f.Endpoint)
	}
	return Section{Title: "INCOMPLETE DATA", Body: b.String()}
}

// sortedByValue returns the keys of m ordered by value, highest first,
// ties broken by key.
func sortedByValue(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

package report

import (
	"fmt"
	"strings"

	"github.com/marcin-skalski/timereport/internal/timesheet"
)

// BuildJQL selects issues with worklogs dated inside r, optionally limited
// to the given projects.
func BuildJQL(projects []string, r timesheet.DateRange) string {
	var parts []string
	switch len(projects) {
	case 0:
	case 1:
		parts = append(parts, "project = "+projects[0])
	default:
		parts = append(parts, fmt.Sprintf("project in (%s)", strings.Join(projects, ",")))
	}

	parts = append(parts, fmt.Sprintf("(worklogDate >= '%s' AND worklogDate <= '%s')",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")))

	return strings.Join(parts, " AND ")
}

// keyJQL selects the given issues by key.
func keyJQL(keys []string) string {
	return fmt.Sprintf("key in (%s)", strings.Join(keys, ","))
}

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName names a saved report after its projects and period.
func FileName(r *Report) string {
	projects := "AllProjects"
	if len(r.Projects) > 0 {
		projects = strings.Join(r.Projects, "_")
	}
	return fmt.Sprintf("Jira_Time_Report_%s_%s_to_%s.txt",
		projects, r.Range.Start.Format("2006-01-02"), r.Range.End.Format("2006-01-02"))
}

// Save writes text under dir, creating it if needed, and returns the path.
func Save(dir, text string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName(r))
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

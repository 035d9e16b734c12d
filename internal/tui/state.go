package tui

import (
	"strings"

	"github.com/marcin-skalski/timereport/internal/report"
)

// Page is one report section split into display lines.
type Page struct {
	Title string
	Lines []string
}

// Pages converts rendered report sections into pages.
func Pages(sections []report.Section) []Page {
	pages := make([]Page, 0, len(sections))
	for _, s := range sections {
		body := strings.TrimRight(s.Body, "\n")
		var lines []string
		if body != "" {
			lines = strings.Split(body, "\n")
		}
		pages = append(pages, Page{Title: s.Title, Lines: lines})
	}
	return pages
}

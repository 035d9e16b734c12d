package report

import "fmt"

// FatalFetchError aborts the run: the issue search itself failed, so no
// partial report is produced.
type FatalFetchError struct {
	JQL string
	Err error
}

func (e *FatalFetchError) Error() string {
	return fmt.Sprintf("issue search failed (jql %q): %v", e.JQL, e.Err)
}

func (e *FatalFetchError) Unwrap() error { return e.Err }

// PartialFetchError marks a per-issue fetch that failed. The issue's
// contribution is left out and the run continues.
type PartialFetchError struct {
	Endpoint string
	IssueKey string
	Err      error
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("%s fetch for %s failed: %v", e.Endpoint, e.IssueKey, e.Err)
}

func (e *PartialFetchError) Unwrap() error { return e.Err }

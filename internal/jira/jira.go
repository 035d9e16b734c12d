package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/marcin-skalski/timereport/internal/metrics"
	"github.com/marcin-skalski/timereport/internal/timesheet"
)

// Fields requested from the search endpoint.
var searchFields = []string{
	"key", "summary", "issuetype", "status", "assignee", "parent", "subtasks",
	"timeoriginalestimate",
}

type Options struct {
	BaseURL     string
	Email       string
	APIToken    string
	PageSize    int
	RequestRate float64
	Timeout     time.Duration
}

type Client struct {
	baseURL  string
	email    string
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	metrics  metrics.Recorder
	logger   *slog.Logger
}

func NewClient(opts Options, rec metrics.Recorder, logger *slog.Logger) *Client {
	limit := rate.Inf
	if opts.RequestRate > 0 {
		limit = rate.Limit(opts.RequestRate)
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		email:    opts.Email,
		token:    opts.APIToken,
		pageSize: pageSize,
		http:     &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  rec,
		logger:   logger,
	}
}

// StatusError is a non-2xx answer from Jira.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jira %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
}

type searchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []issueJSON `json:"issues"`
}

type issueJSON struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string `json:"summary"`
		IssueType struct {
			Name    string `json:"name"`
			Subtask bool   `json:"subtask"`
		} `json:"issuetype"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Parent *struct {
			Key string `json:"key"`
		} `json:"parent"`
		Subtasks []struct {
			Key string `json:"key"`
		} `json:"subtasks"`
		TimeOriginalEstimate *int64 `json:"timeoriginalestimate"`
	} `json:"fields"`
}

type worklogResponse struct {
	StartAt  int           `json:"startAt"`
	Total    int           `json:"total"`
	Worklogs []worklogJSON `json:"worklogs"`
}

type worklogJSON struct {
	Author struct {
		AccountID   string `json:"accountId"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Started          string `json:"started"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

type commentResponse struct {
	StartAt  int           `json:"startAt"`
	Total    int           `json:"total"`
	Comments []commentJSON `json:"comments"`
}

type commentJSON struct {
	ID     string `json:"id"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Body json.RawMessage `json:"body"`
}

// SearchIssues runs jql and follows pagination until total is reached or a
// page comes back empty.
func (c *Client) SearchIssues(ctx context.Context, jql string) ([]timesheet.Issue, error) {
	var out []timesheet.Issue
	startAt := 0
	total := -1

	for total < 0 || startAt < total {
		req := searchRequest{
			JQL:        jql,
			Fields:     searchFields,
			StartAt:    startAt,
			MaxResults: c.pageSize,
		}
		var page searchResponse
		if err := c.do(ctx, "search", http.MethodPost, "/rest/api/3/search", nil, req, &page); err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}
		if total < 0 {
			total = page.Total
			c.logger.Info("issues matched", "total", total)
		}
		for _, is := range page.Issues {
			out = append(out, is.toIssue())
		}
		if len(page.Issues) == 0 {
			break
		}
		startAt += len(page.Issues)
	}

	return out, nil
}

// Worklogs returns every worklog of an issue.
func (c *Client) Worklogs(ctx context.Context, issueKey string) ([]timesheet.Worklog, error) {
	var out []timesheet.Worklog
	startAt := 0
	for {
		q := url.Values{}
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		var page worklogResponse
		path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/worklog"
		if err := c.do(ctx, "worklog", http.MethodGet, path, q, nil, &page); err != nil {
			return nil, fmt.Errorf("worklogs %s: %w", issueKey, err)
		}
		for _, wl := range page.Worklogs {
			out = append(out, timesheet.Worklog{
				AuthorID:    wl.Author.AccountID,
				AuthorName:  wl.Author.DisplayName,
				Started:     wl.Started,
				DurationSec: wl.TimeSpentSeconds,
			})
		}
		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			return out, nil
		}
	}
}

// Comments returns the comments of an issue in API order.
func (c *Client) Comments(ctx context.Context, issueKey string) ([]timesheet.Comment, error) {
	var out []timesheet.Comment
	startAt := 0
	for {
		q := url.Values{}
		if startAt > 0 {
			q.Set("startAt", fmt.Sprint(startAt))
		}
		var page commentResponse
		path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment"
		if err := c.do(ctx, "comment", http.MethodGet, path, q, nil, &page); err != nil {
			return nil, fmt.Errorf("comments %s: %w", issueKey, err)
		}
		for _, cm := range page.Comments {
			comment, err := cm.toComment()
			if err != nil {
				c.logger.Warn("unreadable comment body", "issue", issueKey, "comment", cm.ID, "err", err)
				continue
			}
			out = append(out, comment)
		}
		startAt += len(page.Comments)
		if len(page.Comments) == 0 || startAt >= page.Total {
			return out, nil
		}
	}
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, q url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.email, c.token)

	c.logger.Debug("jira request", "method", method, "path", path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(endpoint, 0, time.Since(start))
		return err
	}
	defer resp.Body.Close()
	c.metrics.RecordRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (is issueJSON) toIssue() timesheet.Issue {
	f := is.Fields
	out := timesheet.Issue{
		Key:              is.Key,
		Summary:          f.Summary,
		Type:             timesheet.NormalizeIssueType(f.IssueType.Name),
		Status:           f.Status.Name,
		OriginalEstimate: seconds(f.TimeOriginalEstimate),
	}
	if f.IssueType.Subtask {
		out.Type = timesheet.TypeSubtask
	}
	if f.Assignee != nil {
		out.Assignee = f.Assignee.DisplayName
	}
	if f.Parent != nil {
		out.ParentKey = f.Parent.Key
	}
	for _, st := range f.Subtasks {
		out.SubtaskKeys = append(out.SubtaskKeys, st.Key)
	}
	return out
}

func seconds(v *int64) *time.Duration {
	if v == nil {
		return nil
	}
	d := time.Duration(*v) * time.Second
	return &d
}

// toComment accepts both v2-style string bodies and ADF documents.
func (cm commentJSON) toComment() (timesheet.Comment, error) {
	out := timesheet.Comment{ID: cm.ID, Author: cm.Author.DisplayName}
	raw := bytes.TrimSpace(cm.Body)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			return out, err
		}
		return out, nil
	}
	var doc timesheet.Node
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, err
	}
	out.Doc = &doc
	return out, nil
}

package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/timereport/internal/metrics"
	"github.com/marcin-skalski/timereport/internal/timesheet"
)

func newTestClient(t *testing.T, h http.Handler, rec metrics.Recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:  srv.URL + "/",
		Email:    "pm@example.com",
		APIToken: "token",
		PageSize: 2,
		Timeout:  5 * time.Second,
	}, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSearchIssues_Paginates(t *testing.T) {
	var starts []int
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/api/3/search", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "pm@example.com", user)
		require.Equal(t, "token", pass)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "project = APP", req.JQL)
		require.Equal(t, 2, req.MaxResults)
		require.Contains(t, req.Fields, "timeoriginalestimate")
		require.NotContains(t, req.Fields, "timespent")
		starts = append(starts, req.StartAt)

		switch req.StartAt {
		case 0:
			fmt.Fprint(w, `{"total":3,"issues":[
				{"key":"APP-1","fields":{"summary":"Login","issuetype":{"name":"Story"},"status":{"name":"In Progress"},
				 "assignee":{"displayName":"Alice"},"timeoriginalestimate":28800,"timespent":3600,"subtasks":[{"key":"APP-2"}]}},
				{"key":"APP-2","fields":{"summary":"Form","issuetype":{"name":"Sub-task","subtask":true},"status":{"name":"Done"},
				 "parent":{"key":"APP-1"},"timeoriginalestimate":null}}]}`)
		default:
			fmt.Fprint(w, `{"total":3,"issues":[{"key":"APP-3","fields":{"summary":"Bug","issuetype":{"name":"Bug"},"status":{"name":"Open"}}}]}`)
		}
	})
	c := newTestClient(t, h, nil)

	issues, err := c.SearchIssues(context.Background(), "project = APP")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, starts)
	require.Len(t, issues, 3)
	assert.Equal(t, "APP-1", issues[0].Key)
	assert.Equal(t, timesheet.TypeStory, issues[0].Type)
	assert.Equal(t, "Alice", issues[0].Assignee)
	assert.Equal(t, 8.0, issues[0].EstimateHours())
	assert.Equal(t, []string{"APP-2"}, issues[0].SubtaskKeys)
	assert.Equal(t, timesheet.TypeSubtask, issues[1].Type)
	assert.Equal(t, "APP-1", issues[1].ParentKey)
	assert.Nil(t, issues[1].OriginalEstimate)
	assert.Equal(t, timesheet.IssueType("Bug"), issues[2].Type)
}

func TestSearchIssues_StopsOnEmptyPage(t *testing.T) {
	calls := 0
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"total":10,"issues":[]}`)
	})
	c := newTestClient(t, h, nil)

	issues, err := c.SearchIssues(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1, calls)
}

func TestSearchIssues_StatusError(t *testing.T) {
	rec := metrics.NewCollector()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorMessages":["bad jql"]}`)
	})
	c := newTestClient(t, h, rec)

	_, err := c.SearchIssues(context.Background(), "garbage")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, "bad jql")
}

func TestWorklogs(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/issue/APP-1/worklog", r.URL.Path)
		if r.URL.Query().Get("startAt") == "" {
			fmt.Fprint(w, `{"startAt":0,"total":2,"worklogs":[
				{"author":{"accountId":"u1","displayName":"Alice"},"started":"2025-05-02T09:00:00.000+0000","timeSpentSeconds":3600}]}`)
			return
		}
		fmt.Fprint(w, `{"startAt":1,"total":2,"worklogs":[
			{"author":{"accountId":"u2","displayName":"Bob"},"started":"2025-05-03T09:00:00.000+0000","timeSpentSeconds":1800}]}`)
	})
	c := newTestClient(t, h, nil)

	wls, err := c.Worklogs(context.Background(), "APP-1")
	require.NoError(t, err)

	assert.Equal(t, []timesheet.Worklog{
		{AuthorID: "u1", AuthorName: "Alice", Started: "2025-05-02T09:00:00.000+0000", DurationSec: 3600},
		{AuthorID: "u2", AuthorName: "Bob", Started: "2025-05-03T09:00:00.000+0000", DurationSec: 1800},
	}, wls)
}

func TestComments_StringAndDocumentBodies(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/issue/APP-1/comment", r.URL.Path)
		fmt.Fprint(w, `{"total":3,"comments":[
			{"id":"1","author":{"displayName":"Alice"},"body":"LGTM"},
			{"id":"2","author":{"displayName":"Bob"},"body":{"type":"doc","version":1,"content":[
				{"type":"paragraph","content":[{"type":"text","text":"We were blocked waiting on API access"}]}]}},
			{"id":"3","body":null}]}`)
	})
	c := newTestClient(t, h, nil)

	comments, err := c.Comments(context.Background(), "APP-1")
	require.NoError(t, err)

	require.Len(t, comments, 3)
	assert.Equal(t, "LGTM", comments[0].PlainText())
	require.NotNil(t, comments[1].Doc)
	assert.Equal(t, "We were blocked waiting on API access", comments[1].PlainText())
	assert.Equal(t, "Bob", comments[1].Author)
	assert.Empty(t, comments[2].PlainText())
}

func TestComments_StatusErrorIsRecorded(t *testing.T) {
	rec := metrics.NewCollector()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, h, rec)

	_, err := c.Comments(context.Background(), "APP-404")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "comment", se.Endpoint)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "timereport_jira_requests_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

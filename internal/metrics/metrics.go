// Package metrics records what a report run did against Jira and can dump
// the result in Prometheus text format for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the Jira client and the report pipeline report into.
type Recorder interface {
	RecordRequest(endpoint string, status int, latency time.Duration)
	RecordPartialFailure(endpoint string)
	RecordWorklogs(counted, skipped int)
}

type Collector struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	partialFailures *prometheus.CounterVec
	worklogs        *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timereport_jira_requests_total",
			Help: "Jira API requests by endpoint and status class.",
		}, []string{"endpoint", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timereport_jira_request_seconds",
			Help:    "Jira API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		partialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timereport_partial_fetch_failures_total",
			Help: "Per-issue fetches that failed and were left out of the report.",
		}, []string{"endpoint"}),
		worklogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timereport_worklogs_total",
			Help: "Worklog entries seen, by outcome.",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(c.requests, c.latency, c.partialFailures, c.worklogs)
	return c
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordRequest(endpoint string, status int, latency time.Duration) {
	c.requests.WithLabelValues(endpoint, statusClass(status)).Inc()
	c.latency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

func (c *Collector) RecordPartialFailure(endpoint string) {
	c.partialFailures.WithLabelValues(endpoint).Inc()
}

func (c *Collector) RecordWorklogs(counted, skipped int) {
	c.worklogs.WithLabelValues("counted").Add(float64(counted))
	c.worklogs.WithLabelValues("skipped").Add(float64(skipped))
}

// WriteTextfile writes all metrics to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// statusClass collapses HTTP statuses into 2xx/4xx/5xx; 0 marks a transport
// error with no response.
func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordPartialFailure(string)              {}
func (Nop) RecordWorklogs(int, int)                  {}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/marcin-skalski/timereport/internal/timesheet"
)

// HoursPerDay converts hours to days for display only.
const HoursPerDay = 8.0

type Config struct {
	LogFile      string              `yaml:"log_file"`
	MetricsFile  string              `yaml:"metrics_file"`
	Jira         JiraConfig          `yaml:"jira"`
	Report       ReportConfig        `yaml:"report"`
	Participants []ParticipantConfig `yaml:"participants"`
	Log          LogConfig           `yaml:"log"`
	TUI          TUIConfig           `yaml:"tui"`

	Range timesheet.DateRange `yaml:"-"`
}

type JiraConfig struct {
	URL         string        `yaml:"url"`
	Email       string        `yaml:"email"`
	APIToken    string        `yaml:"api_token"`
	PageSize    int           `yaml:"page_size"`
	RequestRate float64       `yaml:"request_rate"`
	Timeout     time.Duration `yaml:"-"`
	RawTimeout  string        `yaml:"timeout"`
}

type ReportConfig struct {
	Start            string   `yaml:"start"`
	End              string   `yaml:"end"`
	Projects         []string `yaml:"projects"`
	ExcludedStatuses []string `yaml:"excluded_statuses"`
	OutputDir        string   `yaml:"output_dir"`
	Save             *bool    `yaml:"save,omitempty"`
}

type ParticipantConfig struct {
	Name           string  `yaml:"name"`
	AvailableHours float64 `yaml:"available_hours"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// Overrides carries command-line values that take precedence over the file.
type Overrides struct {
	Start    string
	End      string
	Projects []string
	NoSave   bool
}

// ConfigurationError reports missing or invalid settings. It is returned
// before any request is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Load reads the YAML file at path, applies .env and environment
// credentials, command-line overrides and defaults, then validates the
// result. A .env file next to the config file is optional.
func Load(path string, ov Overrides) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg.applyEnv()
	cfg.applyOverrides(ov)

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JIRA_URL"); v != "" {
		c.Jira.URL = v
	}
	if v := os.Getenv("JIRA_EMAIL"); v != "" {
		c.Jira.Email = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		c.Jira.APIToken = v
	}
}

func (c *Config) applyOverrides(ov Overrides) {
	if ov.Start != "" {
		c.Report.Start = ov.Start
	}
	if ov.End != "" {
		c.Report.End = ov.End
	}
	if len(ov.Projects) > 0 {
		c.Report.Projects = ov.Projects
	}
	if ov.NoSave {
		no := false
		c.Report.Save = &no
	}
}

func (c *Config) setDefaults() error {
	if c.LogFile == "" {
		c.LogFile = "logs/timereport.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Jira.PageSize == 0 {
		c.Jira.PageSize = 100
	}
	if c.Jira.RequestRate == 0 {
		c.Jira.RequestRate = 10
	}

	if c.Jira.RawTimeout == "" {
		c.Jira.RawTimeout = "30s"
	}
	d, err := time.ParseDuration(c.Jira.RawTimeout)
	if err != nil {
		return invalid("jira.timeout", "parse %q: %v", c.Jira.RawTimeout, err)
	}
	if d <= 0 {
		return invalid("jira.timeout", "must be positive, got %s", c.Jira.RawTimeout)
	}
	c.Jira.Timeout = d

	if c.Report.ExcludedStatuses == nil {
		c.Report.ExcludedStatuses = append([]string(nil), timesheet.DefaultExcludedStatuses...)
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if c.Report.Save == nil {
		yes := true
		c.Report.Save = &yes
	}
	if c.TUI.Enabled == nil {
		yes := true
		c.TUI.Enabled = &yes
	}

	for i := range c.Report.Projects {
		c.Report.Projects[i] = strings.TrimSpace(c.Report.Projects[i])
	}

	return nil
}

func (c *Config) validate() error {
	if c.Jira.URL == "" {
		return invalid("jira.url", "required")
	}
	if !strings.HasPrefix(c.Jira.URL, "https://") && !strings.HasPrefix(c.Jira.URL, "http://") {
		return invalid("jira.url", "must be an http(s) URL, got %q", c.Jira.URL)
	}
	if c.Jira.Email == "" {
		return invalid("jira.email", "required")
	}
	if c.Jira.APIToken == "" {
		return invalid("jira.api_token", "required (or set JIRA_API_TOKEN)")
	}
	if c.Jira.PageSize < 0 {
		return invalid("jira.page_size", "must be positive, got %d", c.Jira.PageSize)
	}
	if c.Jira.RequestRate < 0 {
		return invalid("jira.request_rate", "must be positive, got %v", c.Jira.RequestRate)
	}

	r, err := ParseDateRange(c.Report.Start, c.Report.End)
	if err != nil {
		return err
	}
	c.Range = r

	for i, p := range c.Report.Projects {
		if p == "" {
			return invalid(fmt.Sprintf("report.projects[%d]", i), "empty project key")
		}
	}

	for i, p := range c.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return invalid(fmt.Sprintf("participants[%d]", i), "name required")
		}
		if p.AvailableHours < 0 {
			return invalid(fmt.Sprintf("participants[%d]", i), "available_hours must not be negative")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "invalid level %q (debug|info|warn|error)", c.Log.Level)
	}
	return nil
}

// ExcludedStatuses returns the configured exclusions as a lookup set.
func (c *Config) ExcludedStatuses() timesheet.StatusSet {
	return timesheet.NewStatusSet(c.Report.ExcludedStatuses...)
}

// ParticipantList converts participant settings for the availability table.
func (c *Config) ParticipantList() []timesheet.Participant {
	out := make([]timesheet.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		out = append(out, timesheet.Participant{Name: p.Name, AvailableHours: p.AvailableHours})
	}
	return out
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/timereport/internal/config"
	"github.com/marcin-skalski/timereport/internal/jira"
	"github.com/marcin-skalski/timereport/internal/logging"
	"github.com/marcin-skalski/timereport/internal/metrics"
	"github.com/marcin-skalski/timereport/internal/report"
	"github.com/marcin-skalski/timereport/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	noTUI := flag.Bool("no-tui", false, "print the report instead of opening the viewer")
	start := flag.String("start", "", "period start (YYYY-MM-DD or ISO 8601), overrides report.start")
	end := flag.String("end", "", "period end (YYYY-MM-DD or ISO 8601), overrides report.end")
	projects := flag.String("projects", "", "comma-separated project keys, overrides report.projects")
	noSave := flag.Bool("no-save", false, "do not write the report file")
	flag.Parse()

	cfg, err := config.Load(*configPath, config.Overrides{
		Start:    *start,
		End:      *end,
		Projects: splitProjects(*projects),
		NoSave:   *noSave,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Auto-detect TUI capability
	enableTUI := !*noTUI && *cfg.TUI.Enabled && os.Getenv("TIMEREPORT_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, err := logging.SetupLogger(logging.Options{File: cfg.LogFile, Level: cfg.Log.Level, Quiet: enableTUI})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseFile()

	collector := metrics.NewCollector()
	client := jira.NewClient(jira.Options{
		BaseURL:     cfg.Jira.URL,
		Email:       cfg.Jira.Email,
		APIToken:    cfg.Jira.APIToken,
		PageSize:    cfg.Jira.PageSize,
		RequestRate: cfg.Jira.RequestRate,
		Timeout:     cfg.Jira.Timeout,
	}, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("timereport starting", "config", *configPath,
		"start", cfg.Range.Start.Format("2006-01-02"), "end", cfg.Range.End.Format("2006-01-02"),
		"projects", cfg.Report.Projects)

	rep, err := report.NewBuilder(client, report.Params{
		Range:            cfg.Range,
		Projects:         cfg.Report.Projects,
		ExcludedStatuses: cfg.ExcludedStatuses(),
		Participants:     cfg.ParticipantList(),
	}, collector, logger).Build(ctx)
	writeMetrics(cfg, collector, logger)
	if err != nil {
		var fatal *report.FatalFetchError
		if errors.As(err, &fatal) {
			logger.Error("issue search failed", "jql", fatal.JQL, "err", fatal.Err)
		} else {
			logger.Error("build report", "err", err)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		logging.CloseFile()
		os.Exit(1)
	}

	sections := report.Render(rep)
	text := report.Text(sections)

	if *cfg.Report.Save {
		path, err := report.Save(cfg.Report.OutputDir, text, rep)
		if err != nil {
			logger.Error("save report", "err", err)
		} else {
			logger.Info("report saved", "path", path)
		}
	}

	if !enableTUI {
		fmt.Print(text)
		return
	}

	header := fmt.Sprintf("timereport │ %s to %s │ %d members │ %d tickets",
		rep.Range.Start.Format("2006-01-02"), rep.Range.End.Format("2006-01-02"),
		len(rep.UserHours), len(rep.IssueHours))
	p := tea.NewProgram(tui.NewModel(header, tui.Pages(sections)), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		logging.CloseFile()
		os.Exit(1)
	}
}

func splitProjects(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeMetrics(cfg *config.Config, c *metrics.Collector, logger *slog.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := c.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("write metrics", "path", cfg.MetricsFile, "err", err)
	}
}

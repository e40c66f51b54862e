package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"brewvulns/internal/config"
	"brewvulns/internal/formula"
	"brewvulns/internal/metrics"
	"brewvulns/internal/report"
	"brewvulns/internal/scan"
	"brewvulns/internal/vuln"

	"github.com/spf13/cobra"
)

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	settings := config.Current()

	var filter string
	if len(args) > 0 {
		filter = args[0]
	}

	ignore, err := scan.LoadIgnoreList(settings.IgnoreFile)
	if err != nil {
		return err
	}

	loader := formula.NewLoader(brewRunnerFactory(settings.BrewPath))
	formulae, err := loadFormulae(ctx, loader, filter)
	if err != nil {
		return err
	}
	if len(formulae) == 0 {
		fmt.Fprintln(out, "No installed formulae found.")
		return nil
	}

	format := report.SelectFormat(jsonOut, sarifOut, cyclonedxOut)
	if format == report.FormatText {
		printPreamble(out, formulae)
	}

	var m *metrics.Metrics
	if settings.MetricsFile != "" {
		m = metrics.NewMetrics()
	}

	vuln.UserAgent = "brew-vulns/" + version
	client := &vuln.OSVClient{
		HTTPClient:  vuln.NewHTTPClient(settings.ConnectTimeout, settings.ReadTimeout, m),
		APIURL:      settings.APIURL,
		BatchSize:   settings.BatchSize,
		RateLimiter: vuln.NewRateLimiter(settings.RateLimit),
	}
	scanner := scan.NewScanner(client)
	scanner.Concurrency = settings.Concurrency

	result, err := scanner.Scan(ctx, formulae, scan.Filters{
		MinSeverity: vuln.ParseThreshold(settings.Severity),
		Ignore:      ignore,
	})
	if err != nil {
		return err
	}

	renderer := report.New(format, report.Options{
		MaxSummary:  settings.MaxSummary,
		ToolVersion: version,
		Color:       format == report.FormatText && colorEnabled(out),
	})
	code, err := renderer.Render(out, result, formulae)
	if err != nil {
		return err
	}

	slog.Info("scan complete",
		"formulae", len(formulae),
		"queried", result.Queried,
		"skipped", result.Skipped,
		"affected", len(result.Findings),
		"vulnerabilities", result.TotalVulnerabilities(),
		"ignored", result.Ignored)

	if m != nil {
		m.RecordScan(result.Queried, result.Skipped, len(result.Findings), result.CountBySeverity())
		if err := m.WriteTextfile(settings.MetricsFile); err != nil {
			slog.Warn("failed to write metrics file", "path", settings.MetricsFile, "error", err)
		}
	}

	if settings.SlackWebhookURL != "" && !result.Empty() {
		notifier := slackNotifierFactory(settings.SlackWebhookURL)
		if err := notifier.NotifyResult(ctx, result); err != nil {
			slog.Warn("failed to send slack notification", "error", err)
		}
	}

	if code != 0 {
		return &exitStatus{code: code}
	}
	return nil
}

func loadFormulae(ctx context.Context, loader *formula.Loader, filter string) ([]formula.Formula, error) {
	switch {
	case brewfile != "":
		return loader.FromBrewfile(ctx, brewfile, includeDeps)
	case includeDeps && filter != "":
		return loader.WithDependencies(ctx, filter)
	default:
		return loader.Installed(ctx, filter)
	}
}

func printPreamble(w io.Writer, formulae []formula.Formula) {
	queryable, skipped := scan.Partition(formulae)
	fmt.Fprintf(w, "Checking %d packages for vulnerabilities...\n", len(queryable))
	if skipped > 0 {
		fmt.Fprintf(w, "(%d packages skipped - no supported source URL)\n", skipped)
	}
	fmt.Fprintln(w)
}

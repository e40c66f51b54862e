package scan

import (
	"context"
	"log/slog"
	"time"

	"brewvulns/internal/formula"
	"brewvulns/internal/vuln"

	"golang.org/x/sync/errgroup"
)

// Client is the subset of the OSV client used by a scan.
type Client interface {
	QueryBatch(ctx context.Context, queries []vuln.Query) ([][]vuln.Match, error)
	GetVulnerability(ctx context.Context, id string) (*vuln.Record, error)
}

// Filters narrows the reported vulnerabilities.
type Filters struct {
	// MinSeverity drops anything ranked below it. SeverityUnknown disables the filter.
	MinSeverity vuln.Severity
	Ignore      *IgnoreList
}

// Finding pairs a formula with its surviving vulnerabilities.
type Finding struct {
	Formula         formula.Formula
	Vulnerabilities []vuln.Vulnerability
}

// Result is the outcome of one scan. Findings keep input order.
type Result struct {
	Findings []Finding
	Queried  int
	Skipped  int
	Ignored  int
}

// Empty reports whether nothing was found.
func (r *Result) Empty() bool {
	return r == nil || len(r.Findings) == 0
}

// TotalVulnerabilities counts vulnerabilities across every finding.
func (r *Result) TotalVulnerabilities() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, f := range r.Findings {
		total += len(f.Vulnerabilities)
	}
	return total
}

// CountBySeverity counts vulnerabilities per display label.
func (r *Result) CountBySeverity() map[string]int {
	counts := map[string]int{}
	if r == nil {
		return counts
	}
	for _, f := range r.Findings {
		for _, v := range f.Vulnerabilities {
			counts[v.SeverityDisplay]++
		}
	}
	return counts
}

// Scanner resolves formulae to vulnerabilities.
type Scanner struct {
	Client Client
	// Concurrency caps detail fetches per formula. Zero means one goroutine per match.
	Concurrency int
	Now         func() time.Time
}

func NewScanner(client Client) *Scanner {
	return &Scanner{Client: client, Now: time.Now}
}

// Partition splits formulae into the queryable ones and a count of the rest.
func Partition(formulae []formula.Formula) ([]formula.Formula, int) {
	queryable := make([]formula.Formula, 0, len(formulae))
	for _, f := range formulae {
		if f.Queryable() {
			queryable = append(queryable, f)
		}
	}
	return queryable, len(formulae) - len(queryable)
}

// Scan queries every queryable formula and applies filters. Any client error
// aborts the scan.
func (s *Scanner) Scan(ctx context.Context, formulae []formula.Formula, filters Filters) (*Result, error) {
	queryable, skipped := Partition(formulae)
	result := &Result{Findings: []Finding{}, Queried: len(queryable), Skipped: skipped}

	queries := make([]vuln.Query, 0, len(queryable))
	for _, f := range queryable {
		queries = append(queries, vuln.Query{RepoURL: f.RepoURL, Version: f.Tag, Name: f.Name})
	}

	matches, err := s.Client.QueryBatch(ctx, queries)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	for i, f := range queryable {
		if i >= len(matches) || len(matches[i]) == 0 {
			continue
		}

		records, err := s.fetchAll(ctx, matches[i])
		if err != nil {
			return nil, err
		}

		scanVersion := f.ScanVersion()
		var kept []vuln.Vulnerability
		for _, v := range vuln.FromRecords(records) {
			if !v.AffectsVersion(scanVersion) {
				continue
			}
			if filters.MinSeverity > vuln.SeverityUnknown && v.SeverityLevel < filters.MinSeverity {
				continue
			}
			if filters.Ignore.Ignores(v, now()) {
				result.Ignored++
				continue
			}
			kept = append(kept, v)
		}

		slog.Debug("scanned formula", "formula", f.Name, "tag", f.Tag, "matches", len(matches[i]), "kept", len(kept))
		if len(kept) > 0 {
			result.Findings = append(result.Findings, Finding{Formula: f, Vulnerabilities: kept})
		}
	}

	for _, id := range filters.Ignore.Unused() {
		slog.Debug("ignore entry matched nothing", "id", id)
	}
	return result, nil
}

// fetchAll retrieves every match concurrently. Records keep match order.
func (s *Scanner) fetchAll(ctx context.Context, matches []vuln.Match) ([]*vuln.Record, error) {
	records := make([]*vuln.Record, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, m := range matches {
		g.Go(func() error {
			record, err := s.Client.GetVulnerability(gctx, m.ID)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

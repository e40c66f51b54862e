package scan

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	bverrors "brewvulns/internal/errors"
	"brewvulns/internal/formula"
	"brewvulns/internal/vuln"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	matches  map[string][]string
	records  map[string]*vuln.Record
	fail     map[string]error
	batchErr error
	queries  [][]vuln.Query
	fetched  []string
}

func (c *fakeClient) QueryBatch(ctx context.Context, queries []vuln.Query) ([][]vuln.Match, error) {
	c.queries = append(c.queries, queries)
	if c.batchErr != nil {
		return nil, c.batchErr
	}
	out := make([][]vuln.Match, len(queries))
	for i, q := range queries {
		for _, id := range c.matches[q.Name] {
			out[i] = append(out[i], vuln.Match{ID: id})
		}
	}
	return out, nil
}

func (c *fakeClient) GetVulnerability(ctx context.Context, id string) (*vuln.Record, error) {
	c.mu.Lock()
	c.fetched = append(c.fetched, id)
	c.mu.Unlock()
	if err, ok := c.fail[id]; ok {
		return nil, err
	}
	r, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("unknown id %s", id)
	}
	return r, nil
}

func ghFormula(name, tag string) formula.Formula {
	return formula.New(formula.Raw{
		Name:     name,
		Versions: formula.Versions{Stable: tag},
		URLs: formula.URLs{Stable: &formula.URLSpec{
			URL: fmt.Sprintf("https://github.com/%s/%s/archive/refs/tags/%s.tar.gz", name, name, tag),
		}},
	})
}

func severe(id, level string) *vuln.Record {
	return &vuln.Record{ID: id, Summary: id + " summary", DatabaseSpecific: map[string]any{"severity": level}}
}

func TestScan(t *testing.T) {
	client := &fakeClient{
		matches: map[string][]string{
			"curl": {"HIGH-1", "LOW-1"},
			"jq":   {"OLD-1"},
		},
		records: map[string]*vuln.Record{
			"HIGH-1": severe("HIGH-1", "HIGH"),
			"LOW-1":  severe("LOW-1", "LOW"),
			"OLD-1": {
				ID: "OLD-1",
				Affected: []vuln.Affected{{Ranges: []vuln.Range{{
					Type:   "SEMVER",
					Events: []vuln.Event{{Introduced: "0"}, {Fixed: "1.0"}},
				}}}},
			},
		},
	}

	formulae := []formula.Formula{
		ghFormula("curl", "8.5.0"),
		formula.New(formula.Raw{Name: "wget", Versions: formula.Versions{Stable: "1.21"}}),
		ghFormula("jq", "1.7.1"),
	}

	t.Run("no filters", func(t *testing.T) {
		result, err := NewScanner(client).Scan(context.Background(), formulae, Filters{})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Queried)
		assert.Equal(t, 1, result.Skipped)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, "curl", result.Findings[0].Formula.Name)
		assert.Len(t, result.Findings[0].Vulnerabilities, 2)
		assert.Equal(t, "HIGH-1", result.Findings[0].Vulnerabilities[0].ID)
		assert.Equal(t, 2, result.TotalVulnerabilities())
		assert.Equal(t, map[string]int{"HIGH": 1, "LOW": 1}, result.CountBySeverity())
	})

	t.Run("severity threshold", func(t *testing.T) {
		result, err := NewScanner(client).Scan(context.Background(), formulae, Filters{MinSeverity: vuln.SeverityHigh})
		require.NoError(t, err)

		require.Len(t, result.Findings, 1)
		require.Len(t, result.Findings[0].Vulnerabilities, 1)
		assert.Equal(t, "HIGH-1", result.Findings[0].Vulnerabilities[0].ID)
	})

	t.Run("threshold drops formula", func(t *testing.T) {
		result, err := NewScanner(client).Scan(context.Background(), formulae, Filters{MinSeverity: vuln.SeverityCritical})
		require.NoError(t, err)
		assert.True(t, result.Empty())
	})

	t.Run("batch preserves order", func(t *testing.T) {
		client.queries = nil
		_, err := NewScanner(client).Scan(context.Background(), formulae, Filters{})
		require.NoError(t, err)

		require.Len(t, client.queries, 1)
		assert.Equal(t, []vuln.Query{
			{RepoURL: "https://github.com/curl/curl", Version: "8.5.0", Name: "curl"},
			{RepoURL: "https://github.com/jq/jq", Version: "1.7.1", Name: "jq"},
		}, client.queries[0])
	})

	t.Run("ignore list", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		ignore := &IgnoreList{IgnoredVulnerabilities: []*IgnoredVulnerability{
			{ID: "LOW-1"},
			{ID: "HIGH-1", SilenceUntil: now.Add(-24 * time.Hour)},
			{ID: "NEVER"},
		}}
		scanner := NewScanner(client)
		scanner.Now = func() time.Time { return now }

		result, err := scanner.Scan(context.Background(), formulae, Filters{Ignore: ignore})
		require.NoError(t, err)

		require.Len(t, result.Findings, 1)
		require.Len(t, result.Findings[0].Vulnerabilities, 1)
		assert.Equal(t, "HIGH-1", result.Findings[0].Vulnerabilities[0].ID)
		assert.Equal(t, 1, result.Ignored)
		assert.Equal(t, []string{"HIGH-1", "NEVER"}, ignore.Unused())
	})
}

func TestScanNothingQueryable(t *testing.T) {
	client := &fakeClient{}
	result, err := NewScanner(client).Scan(context.Background(), []formula.Formula{
		formula.New(formula.Raw{Name: "local"}),
	}, Filters{})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, client.fetched)
}

func TestScanErrors(t *testing.T) {
	formulae := []formula.Formula{ghFormula("curl", "8.5.0")}

	t.Run("batch failure", func(t *testing.T) {
		client := &fakeClient{batchErr: bverrors.NewAPIError(nil, "OSV API error: 503 Service Unavailable")}
		_, err := NewScanner(client).Scan(context.Background(), formulae, Filters{})

		var apiErr *bverrors.APIError
		require.ErrorAs(t, err, &apiErr)
	})

	t.Run("single detail failure aborts", func(t *testing.T) {
		client := &fakeClient{
			matches: map[string][]string{"curl": {"A", "B", "C"}},
			records: map[string]*vuln.Record{"A": severe("A", "LOW"), "C": severe("C", "LOW")},
			fail:    map[string]error{"B": bverrors.NewAPIError(nil, "OSV API timeout: slow")},
		}
		result, err := NewScanner(client).Scan(context.Background(), formulae, Filters{})

		assert.Nil(t, result)
		assert.EqualError(t, err, "OSV API timeout: slow")
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		client := &fakeClient{
			matches: map[string][]string{"curl": {"A", "B", "C"}},
			records: map[string]*vuln.Record{"A": severe("A", "LOW"), "B": severe("B", "HIGH"), "C": severe("C", "LOW")},
		}
		scanner := NewScanner(client)
		scanner.Concurrency = 1

		result, err := scanner.Scan(context.Background(), formulae, Filters{})
		require.NoError(t, err)
		var ids []string
		for _, v := range result.Findings[0].Vulnerabilities {
			ids = append(ids, v.ID)
		}
		assert.Equal(t, []string{"A", "B", "C"}, ids)
	})
}

package vuln

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bverrors "brewvulns/internal/errors"
	"brewvulns/internal/metrics"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL         = "https://api.osv.dev/v1"
	DefaultBatchSize      = 1000
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second

	gitEcosystem = "GIT"
)

// UserAgent is sent with every OSV request.
var UserAgent = "brew-vulns"

// defaultHTTPClient serves clients built without an HTTPClient.
var defaultHTTPClient = NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout, nil)

// OSVClient talks to the OSV API.
type OSVClient struct {
	HTTPClient *http.Client
	APIURL     string
	BatchSize  int
	// RateLimiter, when set, paces every request.
	RateLimiter *rate.Limiter
}

// NewOSVClient returns a client using the default endpoint and timeouts.
func NewOSVClient() *OSVClient {
	return &OSVClient{
		HTTPClient: NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout, nil),
		APIURL:     DefaultAPIURL,
		BatchSize:  DefaultBatchSize,
	}
}

// NewRateLimiter allows perSecond requests per second with a burst of the
// same size. Zero or less means no limit and returns nil.
func NewRateLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

// NewHTTPClient builds a client with separate connect and read timeouts.
// The client timeout bounds the whole exchange including the response body,
// so a server that stalls mid-body still fails. Certificate verification is
// always on. m may be nil.
func NewHTTPClient(connectTimeout, readTimeout time.Duration, m *metrics.Metrics) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConnsPerHost:   16,
	}
	return &http.Client{
		Transport: m.InstrumentRoundTripper(transport),
		Timeout:   connectTimeout + readTimeout,
	}
}

// QueryBatch looks up every query, chunked to the API limit. The result has
// one slot per query, in input order.
func (c *OSVClient) QueryBatch(ctx context.Context, queries []Query) ([][]Match, error) {
	results := make([][]Match, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	size := c.BatchSize
	if size <= 0 || size > DefaultBatchSize {
		size = DefaultBatchSize
	}

	for start := 0; start < len(queries); start += size {
		end := min(start+size, len(queries))

		req := osvBatchRequest{Queries: make([]osvQuery, 0, end-start)}
		for _, q := range queries[start:end] {
			req.Queries = append(req.Queries, newQuery(q.RepoURL, q.Version))
		}

		var resp osvBatchResponse
		if err := c.do(ctx, http.MethodPost, "/querybatch", req, &resp); err != nil {
			return nil, err
		}
		slog.Debug("OSV batch query", "offset", start, "queries", len(req.Queries), "results", len(resp.Results))

		for i, r := range resp.Results {
			if start+i >= end {
				break
			}
			results[start+i] = r.Vulns
		}
	}

	for i := range results {
		if results[i] == nil {
			results[i] = []Match{}
		}
	}
	return results, nil
}

// Query returns every record matching repoURL at version, following
// pagination until the API stops returning a page token.
func (c *OSVClient) Query(ctx context.Context, repoURL, version string) ([]Record, error) {
	payload := newQuery(repoURL, version)

	var records []Record
	for {
		var resp osvQueryResponse
		if err := c.do(ctx, http.MethodPost, "/query", payload, &resp); err != nil {
			return nil, err
		}
		records = append(records, resp.Vulns...)
		if resp.NextPageToken == "" {
			break
		}
		payload.PageToken = resp.NextPageToken
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// GetVulnerability fetches the full record for id.
func (c *OSVClient) GetVulnerability(ctx context.Context, id string) (*Record, error) {
	var record Record
	if err := c.do(ctx, http.MethodGet, "/vulns/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func newQuery(repoURL, version string) osvQuery {
	return osvQuery{
		Package: osvPackage{Name: repoURL, Ecosystem: gitEcosystem},
		Version: version,
	}
}

func (c *OSVClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	if c.RateLimiter != nil {
		if err := c.RateLimiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return bverrors.NewAPIError(err, "OSV API connection error: %v", err)
			}
			return bverrors.NewAPIError(err, "OSV API timeout: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return bverrors.NewAPIError(nil, "OSV API error: %d %s", resp.StatusCode, statusText(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return bverrors.NewAPIError(err, "Invalid JSON response from OSV API: %v", err)
	}
	return nil
}

func (c *OSVClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func classifyTransportError(err error) error {
	var certErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	var netErr net.Error

	switch {
	case errors.As(err, &certErr), errors.As(err, &authorityErr), errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr):
		return bverrors.NewAPIError(err, "OSV API SSL error: %v", err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return bverrors.NewAPIError(err, "OSV API timeout: %v", err)
	default:
		return bverrors.NewAPIError(err, "OSV API connection error: %v", err)
	}
}

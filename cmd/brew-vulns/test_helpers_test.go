package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"brewvulns/internal/formula"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// fakeBrew answers brew invocations keyed by their joined arguments.
type fakeBrew struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeBrew) Run(ctx context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	out, ok := f.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected brew call: %s", key)
	}
	return []byte(out), nil
}

type cmdResult struct {
	stdout string
	stderr string
	code   int
}

// executeCommand runs the root command against brew and returns its output
// and exit code. Configuration starts from a clean slate for every call.
func executeCommand(t *testing.T, brew formula.Runner, args ...string) cmdResult {
	t.Helper()

	viper.Reset()
	resetFlags(rootCmd)
	t.Setenv("HOME", t.TempDir())

	oldExit, oldFactory, oldColor := exit, brewRunnerFactory, colorEnabled
	code := 0
	exit = func(c int) { code = c }
	brewRunnerFactory = func(string) formula.Runner { return brew }
	colorEnabled = func(io.Writer) bool { return false }
	defer func() {
		exit, brewRunnerFactory, colorEnabled = oldExit, oldFactory, oldColor
		viper.Reset()
	}()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(bytes.NewBufferString(""))

	execute(args)
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// resetFlags resets all flags to their default values.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// osvServer serves querybatch and vulns endpoints from fixtures keyed by
// repository URL and vulnerability id.
type osvServer struct {
	*httptest.Server

	mu          sync.Mutex
	batchCalls  int
	detailCalls int
}

func newOSVServer(t *testing.T, byRepo map[string][]string, records map[string]string) *osvServer {
	t.Helper()
	s := &osvServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/querybatch":
			s.batchCalls++
			var req struct {
				Queries []struct {
					Package struct {
						Name string `json:"name"`
					} `json:"package"`
				} `json:"queries"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			type match struct {
				ID string `json:"id"`
			}
			type result struct {
				Vulns []match `json:"vulns,omitempty"`
			}
			resp := struct {
				Results []result `json:"results"`
			}{Results: []result{}}
			for _, q := range req.Queries {
				var res result
				for _, id := range byRepo[q.Package.Name] {
					res.Vulns = append(res.Vulns, match{ID: id})
				}
				resp.Results = append(resp.Results, res)
			}
			json.NewEncoder(w).Encode(resp)

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/vulns/"):
			s.detailCalls++
			id := strings.TrimPrefix(r.URL.Path, "/v1/vulns/")
			record, ok := records[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			io.WriteString(w, record)

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	t.Setenv("BREW_VULNS_API_URL", s.URL+"/v1")
	return s
}

func (s *osvServer) calls() (batch, detail int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls, s.detailCalls
}

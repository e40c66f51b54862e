package formula

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	bverrors "brewvulns/internal/errors"
)

// Runner executes the brew binary.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExitError is returned by ExecRunner when brew exits non-zero.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("brew %s exited with status %d", strings.Join(e.Args, " "), e.Code)
}

var execCommandContext = exec.CommandContext

// ExecRunner runs brew as a subprocess.
type ExecRunner struct {
	Path string
}

func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	path := r.Path
	if path == "" {
		path = "brew"
	}

	cmd := execCommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("running brew", "args", args)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &ExitError{Args: args, Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return out, err
	}
	return out, nil
}

// Loader enumerates formulae through brew.
type Loader struct {
	Runner Runner
}

func NewLoader(runner Runner) *Loader {
	return &Loader{Runner: runner}
}

type infoOutput struct {
	Formulae []Raw `json:"formulae"`
}

// Installed returns every installed formula, optionally narrowed to filter
// and its versioned variants.
func (l *Loader) Installed(ctx context.Context, filter string) ([]Formula, error) {
	all, err := l.info(ctx, "--installed")
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}
	return filterByName(all, filter), nil
}

// WithDependencies returns the formulae matching filter plus their installed
// dependencies. Without a filter every installed formula is returned.
func (l *Loader) WithDependencies(ctx context.Context, filter string) ([]Formula, error) {
	all, err := l.info(ctx, "--installed")
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}

	filtered := filterByName(all, filter)
	if len(filtered) == 0 {
		return []Formula{}, nil
	}

	byName := make(map[string]Formula, len(all))
	for _, f := range all {
		byName[f.Name] = f
	}

	result := filtered
	seen := make(map[string]bool, len(filtered))
	for _, f := range filtered {
		seen[f.Name] = true
	}
	for _, dep := range l.deps(ctx, "--installed", filter) {
		if seen[dep] {
			continue
		}
		if f, ok := byName[dep]; ok {
			result = append(result, f)
			seen[dep] = true
		}
	}
	return result, nil
}

// FromBrewfile resolves the brew entries of a Brewfile, with their
// dependencies when includeDeps is set.
func (l *Loader) FromBrewfile(ctx context.Context, path string, includeDeps bool) ([]Formula, error) {
	names, err := ParseBrewfile(path)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []Formula{}, nil
	}

	if includeDeps {
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			seen[n] = true
		}
		args := append([]string{"--union"}, names...)
		for _, dep := range l.deps(ctx, args...) {
			if !seen[dep] {
				names = append(names, dep)
				seen[dep] = true
			}
		}
	}

	return l.info(ctx, names...)
}

func (l *Loader) info(ctx context.Context, args ...string) ([]Formula, error) {
	out, err := l.Runner.Run(ctx, append([]string{"info", "--json=v2"}, args...)...)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, bverrors.NewDomainError("brew info failed with status %d", exitErr.Code)
		}
		return nil, bverrors.NewDomainError("brew info failed: %v", err)
	}

	var data infoOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, &bverrors.DataSourceError{Source: "brew info", Err: err}
	}

	formulae := make([]Formula, 0, len(data.Formulae))
	for _, raw := range data.Formulae {
		formulae = append(formulae, New(raw))
	}
	slog.Debug("loaded formulae", "count", len(formulae))
	return formulae, nil
}

// deps lists dependency names. brew deps failures are not fatal: the scan
// proceeds with the formulae already resolved.
func (l *Loader) deps(ctx context.Context, args ...string) []string {
	out, err := l.Runner.Run(ctx, append([]string{"deps"}, args...)...)
	if err != nil {
		slog.Warn("brew deps failed", "args", args, "error", err)
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func filterByName(formulae []Formula, filter string) []Formula {
	result := []Formula{}
	for _, f := range formulae {
		if MatchesFilter(f.Name, filter) {
			result = append(result, f)
		}
	}
	return result
}

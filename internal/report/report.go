package report

import (
	"io"
	"strings"

	"brewvulns/internal/formula"
	"brewvulns/internal/scan"
)

const (
	ToolName           = "brew-vulns"
	ToolInformationURI = "https://github.com/homebrew/brew-vulns"
)

// Format selects a renderer.
type Format string

const (
	FormatText      Format = "text"
	FormatJSON      Format = "json"
	FormatSARIF     Format = "sarif"
	FormatCycloneDX Format = "cyclonedx"
)

// SelectFormat applies the flag precedence cyclonedx > sarif > json > text.
func SelectFormat(jsonOut, sarifOut, cyclonedxOut bool) Format {
	switch {
	case cyclonedxOut:
		return FormatCycloneDX
	case sarifOut:
		return FormatSARIF
	case jsonOut:
		return FormatJSON
	default:
		return FormatText
	}
}

// Renderer writes a scan result. The returned exit code is 0 when nothing
// was found and 1 otherwise.
type Renderer interface {
	Render(w io.Writer, result *scan.Result, all []formula.Formula) (int, error)
}

// Options configures every renderer.
type Options struct {
	MaxSummary  int
	ToolVersion string
	// Color enables ANSI severity coloring in text output.
	Color bool
}

// New returns the renderer for format.
func New(format Format, opts Options) Renderer {
	switch format {
	case FormatJSON:
		return &JSONRenderer{}
	case FormatSARIF:
		return &SARIFRenderer{ToolVersion: opts.ToolVersion}
	case FormatCycloneDX:
		return &CycloneDXRenderer{ToolVersion: opts.ToolVersion}
	default:
		return &TextRenderer{MaxSummary: opts.MaxSummary, Color: opts.Color}
	}
}

func exitCode(result *scan.Result) int {
	if result.Empty() {
		return 0
	}
	return 1
}

func findings(result *scan.Result) []scan.Finding {
	if result == nil {
		return nil
	}
	return result.Findings
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// sarifLevel maps a severity label to a SARIF result level.
func sarifLevel(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "error"
	case "medium":
		return "warning"
	case "low":
		return "note"
	default:
		return "warning"
	}
}

package report

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"brewvulns/internal/formula"
	"brewvulns/internal/scan"
	"brewvulns/internal/vuln"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// TextRenderer prints a human readable report.
type TextRenderer struct {
	// MaxSummary truncates summaries to this many characters; 0 disables it.
	MaxSummary int
	Color      bool
}

func (t *TextRenderer) Render(w io.Writer, result *scan.Result, _ []formula.Formula) (int, error) {
	bw := bufio.NewWriter(w)

	if result.Empty() {
		fmt.Fprintln(bw, "No vulnerabilities found.")
		return 0, bw.Flush()
	}

	profile := termenv.Ascii
	if t.Color {
		profile = termenv.ANSI
	}
	renderer := lipgloss.NewRenderer(w)
	renderer.SetColorProfile(profile)
	styles := newSeverityStyles(renderer)

	sorted := slices.Clone(result.Findings)
	slices.SortStableFunc(sorted, func(a, b scan.Finding) int {
		return int(maxSeverity(b.Vulnerabilities)) - int(maxSeverity(a.Vulnerabilities))
	})

	total := 0
	for _, finding := range sorted {
		fmt.Fprintf(bw, "%s (%s)\n", finding.Formula.Name, finding.Formula.Version)

		vulns := slices.Clone(finding.Vulnerabilities)
		slices.SortStableFunc(vulns, func(a, b vuln.Vulnerability) int {
			return int(b.SeverityLevel) - int(a.SeverityLevel)
		})

		for _, v := range vulns {
			total++
			line := fmt.Sprintf("  %s (%s)", v.ID, styles.render(v.SeverityDisplay))
			if v.HasSummary() {
				line += " - " + Truncate(v.Summary, t.MaxSummary)
			}
			fmt.Fprintln(bw, line)

			if len(v.FixedVersions) > 0 {
				fmt.Fprintf(bw, "    Fixed in: %s\n", strings.Join(v.FixedVersions, ", "))
			}
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintf(bw, "Found %d vulnerabilities in %d packages\n", total, len(sorted))
	return 1, bw.Flush()
}

// Truncate shortens s to max characters followed by "...". A max of 0
// leaves s untouched.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func maxSeverity(vulns []vuln.Vulnerability) vuln.Severity {
	highest := vuln.SeverityUnknown
	for _, v := range vulns {
		highest = max(highest, v.SeverityLevel)
	}
	return highest
}

type severityStyles struct {
	critical lipgloss.Style
	high     lipgloss.Style
	medium   lipgloss.Style
	low      lipgloss.Style
}

func newSeverityStyles(r *lipgloss.Renderer) severityStyles {
	return severityStyles{
		critical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")), // Red
		high:     r.NewStyle().Foreground(lipgloss.Color("1")),
		medium:   r.NewStyle().Foreground(lipgloss.Color("3")), // Yellow
		low:      r.NewStyle().Foreground(lipgloss.Color("2")), // Green
	}
}

func (s severityStyles) render(label string) string {
	switch label {
	case "CRITICAL":
		return s.critical.Render(label)
	case "HIGH":
		return s.high.Render(label)
	case "MEDIUM":
		return s.medium.Render(label)
	case "LOW":
		return s.low.Render(label)
	default:
		return label
	}
}

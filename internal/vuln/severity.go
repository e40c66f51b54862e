package vuln

import (
	"strings"

	"github.com/goark/go-cvss/v3/metric"
)

// Severity is the rank used for sorting and threshold filtering.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a level name (any case) to its rank. Unrecognized names
// map to SeverityUnknown.
func ParseSeverity(name string) Severity {
	switch normalizeLabel(name) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityUnknown
	}
}

// ParseThreshold parses a --severity value. Only the four level names are
// accepted; anything else, the MODERATE alias included, means no threshold.
func ParseThreshold(name string) Severity {
	label := strings.ToUpper(strings.TrimSpace(name))
	if label == "MODERATE" {
		return SeverityUnknown
	}
	return ParseSeverity(label)
}

func normalizeLabel(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "MODERATE" {
		return "MEDIUM"
	}
	return label
}

// deriveSeverity picks the first usable severity source: the record's own
// database_specific label, then per-package labels, then CVSS v3 vectors.
func deriveSeverity(r *Record) (Severity, string) {
	if label := normalizeLabel(stringField(r.DatabaseSpecific, "severity")); label != "" {
		return ParseSeverity(label), label
	}

	for _, a := range r.Affected {
		for _, m := range []map[string]any{a.DatabaseSpecific, a.EcosystemSpecific} {
			if label := normalizeLabel(stringField(m, "severity")); label != "" {
				return ParseSeverity(label), label
			}
		}
	}

	vectors := append([]SeverityItem{}, r.Severity...)
	for _, a := range r.Affected {
		vectors = append(vectors, a.Severity...)
	}
	for _, item := range vectors {
		if !strings.HasPrefix(strings.ToUpper(item.Type), "CVSS_V3") {
			continue
		}
		if label := cvssLabel(item.Score); label != "" {
			return ParseSeverity(label), label
		}
	}

	return SeverityUnknown, SeverityUnknown.String()
}

func cvssLabel(vector string) string {
	bm, err := metric.NewBase().Decode(vector)
	if err != nil {
		return ""
	}
	return strings.ToUpper(bm.Severity().String())
}

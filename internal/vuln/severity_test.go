package vuln

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityMedium, ParseSeverity("Medium"))
	assert.Equal(t, SeverityMedium, ParseSeverity("MODERATE"))
	assert.Equal(t, SeverityHigh, ParseSeverity("HIGH"))
	assert.Equal(t, SeverityCritical, ParseSeverity(" critical "))
	assert.Equal(t, SeverityUnknown, ParseSeverity("severe"))
	assert.Equal(t, SeverityUnknown, ParseSeverity(""))
}

func TestParseThreshold(t *testing.T) {
	assert.Equal(t, SeverityLow, ParseThreshold("low"))
	assert.Equal(t, SeverityMedium, ParseThreshold("MEDIUM"))
	assert.Equal(t, SeverityHigh, ParseThreshold(" High"))
	assert.Equal(t, SeverityCritical, ParseThreshold("critical"))
	assert.Equal(t, SeverityUnknown, ParseThreshold("moderate"))
	assert.Equal(t, SeverityUnknown, ParseThreshold("MODERATE"))
	assert.Equal(t, SeverityUnknown, ParseThreshold("severe"))
	assert.Equal(t, SeverityUnknown, ParseThreshold(""))
}

func TestSeverityOrdering(t *testing.T) {
	levels := []Severity{SeverityUnknown, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}
	assert.Equal(t, "UNKNOWN", SeverityUnknown.String())
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
}

func TestDeriveSeverity(t *testing.T) {
	tests := []struct {
		name        string
		record      Record
		wantLevel   Severity
		wantDisplay string
	}{
		{
			name:        "database specific label",
			record:      Record{DatabaseSpecific: map[string]any{"severity": "HIGH"}},
			wantLevel:   SeverityHigh,
			wantDisplay: "HIGH",
		},
		{
			name:        "moderate is medium",
			record:      Record{DatabaseSpecific: map[string]any{"severity": "moderate"}},
			wantLevel:   SeverityMedium,
			wantDisplay: "MEDIUM",
		},
		{
			name: "affected ecosystem specific",
			record: Record{Affected: []Affected{
				{EcosystemSpecific: map[string]any{"severity": "low"}},
			}},
			wantLevel:   SeverityLow,
			wantDisplay: "LOW",
		},
		{
			name: "cvss v3 vector",
			record: Record{Severity: []SeverityItem{
				{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"},
			}},
			wantLevel:   SeverityCritical,
			wantDisplay: "CRITICAL",
		},
		{
			name: "cvss v3 medium",
			record: Record{Severity: []SeverityItem{
				{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:H/PR:N/UI:R/S:U/C:L/I:L/A:N"},
			}},
			wantLevel:   SeverityMedium,
			wantDisplay: "MEDIUM",
		},
		{
			name: "unsupported vector types are skipped",
			record: Record{Severity: []SeverityItem{
				{Type: "CVSS_V4", Score: "CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N"},
			}},
			wantLevel:   SeverityUnknown,
			wantDisplay: "UNKNOWN",
		},
		{
			name:        "nothing",
			record:      Record{},
			wantLevel:   SeverityUnknown,
			wantDisplay: "UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, display := deriveSeverity(&tt.record)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantDisplay, display)
		})
	}
}

package vuln

import (
	"strings"
)

const osvVulnerabilityURL = "https://osv.dev/vulnerability/"

// Vulnerability is a normalized OSV record.
type Vulnerability struct {
	ID              string
	Summary         string
	Aliases         []string
	SeverityLevel   Severity
	SeverityDisplay string
	FixedVersions   []string
	AdvisoryURL     string

	affected []Affected
}

// FromRecord normalizes one OSV record.
func FromRecord(r *Record) Vulnerability {
	level, display := deriveSeverity(r)

	aliases := r.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	return Vulnerability{
		ID:              r.ID,
		Summary:         strings.TrimSpace(r.Summary),
		Aliases:         aliases,
		SeverityLevel:   level,
		SeverityDisplay: display,
		FixedVersions:   fixedVersions(r),
		AdvisoryURL:     advisoryURL(r),
		affected:        r.Affected,
	}
}

// FromRecords normalizes records, keeping their order.
func FromRecords(records []*Record) []Vulnerability {
	out := make([]Vulnerability, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, FromRecord(r))
	}
	return out
}

// AffectsVersion reports whether v falls inside the record's affected data.
// A record with no range or version data affects every version.
func (v Vulnerability) AffectsVersion(ver string) bool {
	hasData := false
	for _, a := range v.affected {
		for _, listed := range a.Versions {
			hasData = true
			if versionsEqual(listed, ver) {
				return true
			}
		}
		for _, r := range a.Ranges {
			hasData = true
			if rangeAffects(r, ver) {
				return true
			}
		}
	}
	return !hasData
}

// HasSummary reports whether the record carried a summary.
func (v Vulnerability) HasSummary() bool {
	return v.Summary != ""
}

// MatchesID reports whether id is the vulnerability id or one of its aliases.
func (v Vulnerability) MatchesID(id string) bool {
	if strings.EqualFold(v.ID, id) {
		return true
	}
	for _, alias := range v.Aliases {
		if strings.EqualFold(alias, id) {
			return true
		}
	}
	return false
}

func fixedVersions(r *Record) []string {
	fixed := []string{}
	seen := map[string]bool{}
	for _, a := range r.Affected {
		for _, rng := range a.Ranges {
			for _, e := range rng.Events {
				if e.Fixed == "" || isCommit(e.Fixed) || seen[e.Fixed] {
					continue
				}
				seen[e.Fixed] = true
				fixed = append(fixed, e.Fixed)
			}
		}
	}
	return fixed
}

func advisoryURL(r *Record) string {
	if u := stringField(r.DatabaseSpecific, "url"); u != "" {
		return u
	}
	for _, ref := range r.References {
		if strings.EqualFold(ref.Type, "ADVISORY") && ref.URL != "" {
			return ref.URL
		}
	}
	if len(r.References) > 0 && r.References[0].URL != "" {
		return r.References[0].URL
	}
	return osvVulnerabilityURL + r.ID
}

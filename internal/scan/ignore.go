package scan

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"brewvulns/internal/vuln"

	"gopkg.in/yaml.v3"
)

// IgnoreList holds vulnerabilities that should not be reported.
type IgnoreList struct {
	IgnoredVulnerabilities []*IgnoredVulnerability `yaml:"ignored-vulnerabilities"`
}

// IgnoredVulnerability silences one id (or alias) until SilenceUntil. A zero
// SilenceUntil silences it indefinitely.
type IgnoredVulnerability struct {
	ID           string    `yaml:"id"`
	SilenceUntil time.Time `yaml:"silence-until"`
	Info         string    `yaml:"info"`

	matched bool
	warned  bool
}

// LoadIgnoreList reads an ignore file. An empty path yields an empty list.
func LoadIgnoreList(path string) (*IgnoreList, error) {
	l := &IgnoreList{}
	if path == "" {
		return l, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	if err := yaml.Unmarshal(contents, l); err != nil {
		return nil, fmt.Errorf("failed to parse ignore file %s: %w", path, err)
	}
	return l, nil
}

// Ignores reports whether v is silenced at now.
func (l *IgnoreList) Ignores(v vuln.Vulnerability, now time.Time) bool {
	if l == nil {
		return false
	}
	for _, entry := range l.IgnoredVulnerabilities {
		if entry == nil || !v.MatchesID(entry.ID) {
			continue
		}
		if !entry.SilenceUntil.IsZero() && now.After(entry.SilenceUntil) {
			if !entry.warned {
				slog.Warn("ignore entry expired", "id", entry.ID, "silence_until", entry.SilenceUntil.Format(time.DateOnly))
				entry.warned = true
			}
			continue
		}
		entry.matched = true
		slog.Debug("ignoring vulnerability", "id", v.ID, "entry", entry.ID, "info", entry.Info)
		return true
	}
	return false
}

// Unused returns the ids of entries that silenced nothing.
func (l *IgnoreList) Unused() []string {
	if l == nil {
		return nil
	}
	var ids []string
	for _, entry := range l.IgnoredVulnerabilities {
		if entry != nil && !entry.matched {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

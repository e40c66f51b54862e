package vuln

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

var commitRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)

// normalizeVersion turns release tags such as "curl-8_5_0" or "v1.2.3" into
// comparable dotted versions.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "0123456789"); i > 0 {
		v = v[i:]
	}
	return strings.ReplaceAll(v, "_", ".")
}

func parseVersion(v string) (*version.Version, error) {
	return version.NewVersion(normalizeVersion(v))
}

func isCommit(v string) bool {
	return commitRegex.MatchString(v)
}

type rangeEvent struct {
	kind string
	at   *version.Version
}

// rangeAffects applies the OSV event algorithm to one range. GIT ranges and
// anything that cannot be parsed count as affected.
func rangeAffects(r Range, v string) bool {
	if strings.EqualFold(r.Type, "GIT") {
		return true
	}

	current, err := parseVersion(v)
	if err != nil {
		return true
	}

	events := make([]rangeEvent, 0, len(r.Events))
	for _, e := range r.Events {
		var kind, raw string
		switch {
		case e.Introduced != "":
			kind, raw = "introduced", e.Introduced
		case e.Fixed != "":
			kind, raw = "fixed", e.Fixed
		case e.LastAffected != "":
			kind, raw = "last_affected", e.LastAffected
		case e.Limit != "":
			kind, raw = "limit", e.Limit
		default:
			continue
		}

		if raw == "0" && kind == "introduced" {
			events = append(events, rangeEvent{kind: kind})
			continue
		}
		if kind == "limit" && raw == "*" {
			continue
		}
		at, err := parseVersion(raw)
		if err != nil {
			return true
		}
		events = append(events, rangeEvent{kind: kind, at: at})
	}

	// nil (introduced "0") sorts first.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at == nil {
			return events[j].at != nil
		}
		if events[j].at == nil {
			return false
		}
		return events[i].at.LessThan(events[j].at)
	})

	affected := false
	for _, e := range events {
		switch e.kind {
		case "introduced":
			if e.at == nil || current.GreaterThanOrEqual(e.at) {
				affected = true
			}
		case "fixed", "limit":
			if current.GreaterThanOrEqual(e.at) {
				affected = false
			}
		case "last_affected":
			if current.GreaterThan(e.at) {
				affected = false
			}
		}
	}
	return affected
}

func versionsEqual(a, b string) bool {
	if a == b {
		return true
	}
	va, err := parseVersion(a)
	if err != nil {
		return false
	}
	vb, err := parseVersion(b)
	if err != nil {
		return false
	}
	return va.Equal(vb)
}

package formula

import (
	"regexp"
	"strings"
)

// Hosts whose release archives can be resolved to a git repository.
var supportedForges = map[string]bool{
	"github.com":   true,
	"codeberg.org": true,
}

var repoRegex = regexp.MustCompile(`https?://(github\.com|codeberg\.org)/([^/?#]+/[^/?#]+)`)

// Release URL shapes, first match wins.
var tagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/archive/refs/tags/([^/]+)\.tar\.gz$`),
	regexp.MustCompile(`/archive/refs/tags/([^/]+)\.zip$`),
	regexp.MustCompile(`/archive/([^/]+)\.tar\.gz$`),
	regexp.MustCompile(`/archive/([^/]+)\.zip$`),
	regexp.MustCompile(`/releases/download/([^/]+)/`),
	regexp.MustCompile(`/tarball/([^/]+)$`),
}

// Raw mirrors one entry of `brew info --json=v2` formulae.
type Raw struct {
	Name         string   `json:"name"`
	FullName     string   `json:"full_name"`
	Versions     Versions `json:"versions"`
	Version      string   `json:"version"`
	URLs         URLs     `json:"urls"`
	Dependencies []string `json:"dependencies"`
}

type Versions struct {
	Stable string `json:"stable"`
}

type URLs struct {
	Stable *URLSpec `json:"stable"`
	Head   *URLSpec `json:"head"`
}

type URLSpec struct {
	URL string `json:"url"`
}

// Formula is an installed (or Brewfile-listed) Homebrew package. RepoURL and
// Tag are derived once in New and never change afterwards.
type Formula struct {
	Name         string
	Version      string
	SourceURL    string
	HeadURL      string
	Dependencies []string

	RepoURL string
	Tag     string
}

// New builds a Formula from brew metadata.
func New(raw Raw) Formula {
	f := Formula{
		Name:         raw.Name,
		Version:      raw.Versions.Stable,
		Dependencies: raw.Dependencies,
	}
	if f.Name == "" {
		f.Name = raw.FullName
	}
	if f.Version == "" {
		f.Version = raw.Version
	}
	if raw.URLs.Stable != nil {
		f.SourceURL = raw.URLs.Stable.URL
	}
	if raw.URLs.Head != nil {
		f.HeadURL = raw.URLs.Head.URL
	}
	if f.Dependencies == nil {
		f.Dependencies = []string{}
	}

	f.RepoURL = ExtractRepoURL(f.SourceURL)
	if f.RepoURL == "" {
		f.RepoURL = ExtractRepoURL(f.HeadURL)
	}
	f.Tag = ExtractTag(f.SourceURL)
	return f
}

// SupportedForge reports whether the formula resolved to a known forge.
func (f Formula) SupportedForge() bool {
	if f.RepoURL == "" {
		return false
	}
	host := strings.TrimPrefix(f.RepoURL, "https://")
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return supportedForges[host]
}

// Queryable reports whether the formula has enough identity to be looked up.
func (f Formula) Queryable() bool {
	return f.SupportedForge() && f.Tag != ""
}

// ScanVersion is the version string compared against affected ranges.
func (f Formula) ScanVersion() string {
	if f.Tag != "" {
		return f.Tag
	}
	return f.Version
}

// Purl is the package URL used in SBOM output.
func (f Formula) Purl() string {
	return "pkg:brew/" + f.Name + "@" + f.Version
}

// ExtractRepoURL returns the canonical https://{host}/{owner}/{repo} form of
// url, or "" when the host is not supported.
func ExtractRepoURL(url string) string {
	if url == "" {
		return ""
	}
	matches := repoRegex.FindStringSubmatch(url)
	if len(matches) < 3 {
		return ""
	}
	repoPath := strings.TrimSuffix(matches[2], ".git")
	return "https://" + matches[1] + "/" + repoPath
}

// ExtractTag returns the release tag embedded in an archive URL.
func ExtractTag(url string) string {
	if url == "" {
		return ""
	}
	for _, pattern := range tagPatterns {
		if m := pattern.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// MatchesFilter reports whether name is filter itself or one of its
// versioned variants (filter@N).
func MatchesFilter(name, filter string) bool {
	return name == filter || strings.HasPrefix(name, filter+"@")
}

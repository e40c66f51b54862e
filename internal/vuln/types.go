package vuln

// Query identifies one package version in the GIT ecosystem.
type Query struct {
	RepoURL string
	Version string
	Name    string
}

// Match is an id-only hit returned by the batch endpoint.
type Match struct {
	ID       string `json:"id"`
	Modified string `json:"modified,omitempty"`
}

type osvQuery struct {
	Package   osvPackage `json:"package"`
	Version   string     `json:"version,omitempty"`
	PageToken string     `json:"page_token,omitempty"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvBatchRequest struct {
	Queries []osvQuery `json:"queries"`
}

type osvBatchResponse struct {
	Results []osvBatchResult `json:"results"`
}

type osvBatchResult struct {
	Vulns         []Match `json:"vulns"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

type osvQueryResponse struct {
	Vulns         []Record `json:"vulns"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// Record is an OSV schema vulnerability record.
type Record struct {
	ID               string         `json:"id"`
	Summary          string         `json:"summary,omitempty"`
	Details          string         `json:"details,omitempty"`
	Aliases          []string       `json:"aliases,omitempty"`
	Published        string         `json:"published,omitempty"`
	Modified         string         `json:"modified,omitempty"`
	Withdrawn        string         `json:"withdrawn,omitempty"`
	Severity         []SeverityItem `json:"severity,omitempty"`
	Affected         []Affected     `json:"affected,omitempty"`
	References       []Reference    `json:"references,omitempty"`
	DatabaseSpecific map[string]any `json:"database_specific,omitempty"`
}

// SeverityItem holds a scoring vector, e.g. CVSS_V3.
type SeverityItem struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type Affected struct {
	Package           AffectedPackage `json:"package"`
	Ranges            []Range         `json:"ranges,omitempty"`
	Versions          []string        `json:"versions,omitempty"`
	Severity          []SeverityItem  `json:"severity,omitempty"`
	EcosystemSpecific map[string]any  `json:"ecosystem_specific,omitempty"`
	DatabaseSpecific  map[string]any  `json:"database_specific,omitempty"`
}

type AffectedPackage struct {
	Ecosystem string `json:"ecosystem,omitempty"`
	Name      string `json:"name,omitempty"`
	Purl      string `json:"purl,omitempty"`
}

// Range types are SEMVER, ECOSYSTEM or GIT.
type Range struct {
	Type   string  `json:"type"`
	Repo   string  `json:"repo,omitempty"`
	Events []Event `json:"events"`
}

// Event carries exactly one of its fields.
type Event struct {
	Introduced   string `json:"introduced,omitempty"`
	Fixed        string `json:"fixed,omitempty"`
	LastAffected string `json:"last_affected,omitempty"`
	Limit        string `json:"limit,omitempty"`
}

type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

package report

import (
	"encoding/json"
	"io"

	"brewvulns/internal/formula"
	"brewvulns/internal/scan"
)

type jsonFinding struct {
	Formula         string              `json:"formula"`
	Version         string              `json:"version"`
	Tag             *string             `json:"tag"`
	RepoURL         *string             `json:"repo_url"`
	Vulnerabilities []jsonVulnerability `json:"vulnerabilities"`
}

type jsonVulnerability struct {
	ID            string   `json:"id"`
	Severity      string   `json:"severity"`
	Summary       *string  `json:"summary"`
	Aliases       []string `json:"aliases"`
	FixedVersions []string `json:"fixed_versions"`
}

// JSONRenderer prints one object per affected formula.
type JSONRenderer struct{}

func (j *JSONRenderer) Render(w io.Writer, result *scan.Result, _ []formula.Formula) (int, error) {
	data := make([]jsonFinding, 0, len(findings(result)))
	for _, f := range findings(result) {
		entry := jsonFinding{
			Formula:         f.Formula.Name,
			Version:         f.Formula.Version,
			Tag:             nullable(f.Formula.Tag),
			RepoURL:         nullable(f.Formula.RepoURL),
			Vulnerabilities: make([]jsonVulnerability, 0, len(f.Vulnerabilities)),
		}
		for _, v := range f.Vulnerabilities {
			entry.Vulnerabilities = append(entry.Vulnerabilities, jsonVulnerability{
				ID:            v.ID,
				Severity:      v.SeverityDisplay,
				Summary:       nullable(v.Summary),
				Aliases:       v.Aliases,
				FixedVersions: v.FixedVersions,
			})
		}
		data = append(data, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return 1, err
	}
	return exitCode(result), nil
}

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"brewvulns/internal/formula"
	"brewvulns/internal/scan"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

// SARIF 2.1.0 subset used for code scanning uploads.

type SARIFLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFRule struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	ShortDescription     SARIFMessage       `json:"shortDescription"`
	HelpURI              string             `json:"helpUri,omitempty"`
	DefaultConfiguration SARIFConfiguration `json:"defaultConfiguration"`
}

type SARIFConfiguration struct {
	Level string `json:"level"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SARIFMessage    `json:"message"`
	Locations []SARIFLocation `json:"locations"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
	Message          SARIFMessage          `json:"message"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

// SARIFRenderer prints a single-run SARIF log with one rule per distinct id.
type SARIFRenderer struct {
	ToolVersion string
}

func (s *SARIFRenderer) Render(w io.Writer, result *scan.Result, _ []formula.Formula) (int, error) {
	rules := []SARIFRule{}
	seenRules := map[string]bool{}
	results := []SARIFResult{}

	for _, f := range findings(result) {
		for _, v := range f.Vulnerabilities {
			level := sarifLevel(v.SeverityDisplay)

			if !seenRules[v.ID] {
				seenRules[v.ID] = true
				description := v.Summary
				if description == "" {
					description = "Security vulnerability"
				}
				rules = append(rules, SARIFRule{
					ID:                   v.ID,
					Name:                 v.ID,
					ShortDescription:     SARIFMessage{Text: description},
					HelpURI:              v.AdvisoryURL,
					DefaultConfiguration: SARIFConfiguration{Level: level},
				})
			}

			text := v.Summary
			if text == "" {
				text = v.ID
			}
			uri := f.Formula.RepoURL
			if uri == "" {
				uri = f.Formula.Name
			}

			results = append(results, SARIFResult{
				RuleID:  v.ID,
				Level:   level,
				Message: SARIFMessage{Text: fmt.Sprintf("%s@%s: %s", f.Formula.Name, f.Formula.Version, text)},
				Locations: []SARIFLocation{{
					PhysicalLocation: SARIFPhysicalLocation{ArtifactLocation: SARIFArtifactLocation{URI: uri}},
					Message: SARIFMessage{
						Text: fmt.Sprintf("Affected package: %s version %s", f.Formula.Name, f.Formula.Version),
					},
				}},
			})
		}
	}

	log := SARIFLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []SARIFRun{{
			Tool: SARIFTool{Driver: SARIFDriver{
				Name:           ToolName,
				Version:        s.ToolVersion,
				InformationURI: ToolInformationURI,
				Rules:          rules,
			}},
			Results: results,
		}},
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return 1, fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return 1, err
	}
	return exitCode(result), nil
}

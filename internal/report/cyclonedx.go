package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"brewvulns/internal/formula"
	"brewvulns/internal/scan"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

const (
	osvSourceName = "OSV"
	osvSourceURL  = "https://osv.dev"
)

// CycloneDXRenderer prints an SBOM of every scanned formula with the
// vulnerabilities found attached.
type CycloneDXRenderer struct {
	ToolVersion string
	Now         func() time.Time
}

func (c *CycloneDXRenderer) Render(w io.Writer, result *scan.Result, all []formula.Formula) (int, error) {
	bom := c.build(result, all)

	if err := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(bom); err != nil {
		return 1, fmt.Errorf("failed to encode CycloneDX: %w", err)
	}
	return exitCode(result), nil
}

func (c *CycloneDXRenderer) build(result *scan.Result, all []formula.Formula) *cdx.BOM {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	bom := cdx.NewBOM()
	bom.Metadata = &cdx.Metadata{
		Timestamp: now().UTC().Format(time.RFC3339),
		Tools: &cdx.ToolsChoice{
			Components: &[]cdx.Component{{
				Type:    cdx.ComponentTypeApplication,
				Name:    ToolName,
				Version: c.ToolVersion,
			}},
		},
	}

	components := make([]cdx.Component, 0, len(all))
	for _, f := range all {
		purl := f.Purl()
		components = append(components, cdx.Component{
			BOMRef:     purl,
			Type:       cdx.ComponentTypeLibrary,
			Name:       f.Name,
			Version:    f.Version,
			PackageURL: purl,
		})
	}
	bom.Components = &components

	vulnerabilities := []cdx.Vulnerability{}
	for _, finding := range findings(result) {
		purl := finding.Formula.Purl()
		for _, v := range finding.Vulnerabilities {
			entry := cdx.Vulnerability{
				ID:          v.ID,
				Source:      &cdx.Source{Name: osvSourceName, URL: osvSourceURL},
				Ratings:     &[]cdx.VulnerabilityRating{{Severity: cdx.Severity(strings.ToLower(v.SeverityDisplay))}},
				Description: v.Summary,
				Affects:     &[]cdx.Affects{{Ref: purl}},
			}
			if v.AdvisoryURL != "" {
				entry.Advisories = &[]cdx.Advisory{{URL: v.AdvisoryURL}}
			}
			if len(v.FixedVersions) > 0 {
				entry.Recommendation = "Upgrade to " + strings.Join(v.FixedVersions, " or ")
			}
			vulnerabilities = append(vulnerabilities, entry)
		}
	}
	bom.Vulnerabilities = &vulnerabilities

	return bom
}

package output

import (
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// ToolVersion is the bastet version reported in SARIF and Markdown output.
var ToolVersion = "dev"

// SARIFReportName is the file the "sarif" reporter writes in the reports directory.
const SARIFReportName = "bastet.sarif"

// SARIF writes results in SARIF 2.1.0 format for GitHub Code Scanning.
type SARIF struct {
	opts Options
}

// NewSARIF creates the "sarif" reporter.
func NewSARIF(opts Options) *SARIF {
	return &SARIF{opts: opts.withDefaults()}
}

func (s *SARIF) Create(tools.Tool) Instance { return nopInstance{} }

func (s *SARIF) Summarise(results *types.Results) error {
	f, err := createReport(s.opts.ReportsDir, SARIFReportName)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteSARIF(f, results, s.opts.Version)
}

func (s *SARIF) Close() error { return nil }

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	RuleIndex  int             `json:"ruleIndex"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

// WriteSARIF encodes every annotation above Passed as a SARIF result. Each
// tool and code pair becomes a rule.
func WriteSARIF(w io.Writer, results *types.Results, version string) error {
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	sarifResults := []sarifResult{}
	for _, a := range results.Annotations {
		if a.Status == types.StatusPassed {
			continue
		}
		id := a.Tool + "/" + a.Code
		if _, ok := ruleIndex[id]; !ok {
			ruleIndex[id] = len(rules)
			rules = append(rules, sarifRule{
				ID:               id,
				Name:             a.Code,
				ShortDescription: sarifMessage{Text: a.Message},
				DefaultConfig:    sarifDefaultConfig{Level: statusToLevel(a.Status)},
				Properties:       sarifRuleProperties{Tags: []string{string(a.Domain), a.Tool}},
			})
		}

		text := a.Message
		if a.Description != "" {
			text += "\n" + a.Description
		}
		r := sarifResult{
			RuleID:    id,
			RuleIndex: ruleIndex[id],
			Level:     statusToLevel(a.Status),
			Message:   sarifMessage{Text: text},
			Locations: []sarifLocation{
				{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: filepath.ToSlash(a.Filename(results.Root))},
						Region:           sarifRegion{StartLine: max(a.Source.Line, 1), StartColumn: max(a.Source.Column, 1)},
					},
				},
			},
			Properties: map[string]any{
				"status":      a.Status.String(),
				"fingerprint": a.Fingerprint(results.Root),
			},
		}
		sarifResults = append(sarifResults, r)
	}

	log := sarifLog{
		Schema:  "https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "bastet",
						Version:        version,
						InformationURI: "https://github.com/mewbotorg/bastet",
						Rules:          rules,
					},
				},
				Results: sarifResults,
				Properties: map[string]any{
					"run_id":      results.RunID,
					"success":     results.Success,
					"duration_ms": results.Duration.Milliseconds(),
				},
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func statusToLevel(s types.Status) string {
	switch s {
	case types.StatusError, types.StatusFailed:
		return "error"
	case types.StatusWarning:
		return "warning"
	case types.StatusFixed:
		return "note"
	default:
		return "none"
	}
}

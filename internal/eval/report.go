package eval

import "github.com/Someblueman/lootforge/internal/contract"

type evalReportTarget struct {
	ID               string   `json:"id"`
	FinalScore       float64  `json:"finalScore"`
	PassedHardGates  bool     `json:"passedHardGates"`
	HardGateErrors   []string `json:"hardGateErrors"`
	HardGateWarnings []string `json:"hardGateWarnings"`
}

type evalReportHealth struct {
	Configured []string `json:"configured"`
	Active     []string `json:"active"`
	Failed     []string `json:"failed"`
}

type evalReportDocument struct {
	ContractVersion string             `json:"contractVersion"`
	Targets         []evalReportTarget `json:"targets"`
	AdapterHealth   evalReportHealth   `json:"adapterHealth"`
}

// Write validates and serializes the report as the kind "eval-report"
// contract document.
func (r *Report) Write(contractVersion, artifactPath string) error {
	doc := evalReportDocument{
		ContractVersion: contractVersion,
		AdapterHealth: evalReportHealth{
			Configured: nonNil(r.Health.Configured),
			Active:     nonNil(r.Health.Active),
			Failed:     nonNil(r.Health.Failed),
		},
	}
	for _, t := range r.Targets {
		doc.Targets = append(doc.Targets, evalReportTarget{
			ID:               t.ID,
			FinalScore:       t.FinalScore,
			PassedHardGates:  t.PassedHardGates,
			HardGateErrors:   nonNil(t.HardGateErrors),
			HardGateWarnings: nonNil(t.HardGateWarnings),
		})
	}
	return contract.WriteValidated(contract.KindEvalReport, doc, artifactPath)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

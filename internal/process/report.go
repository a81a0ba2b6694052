package process

import (
	"os"

	"github.com/Someblueman/lootforge/internal/contract"
)

// AcceptanceIssue is one hard-gate finding for a processed target.
type AcceptanceIssue struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AcceptanceTarget is one target's entry in the acceptance report.
type AcceptanceTarget struct {
	ID            string            `json:"id"`
	Out           string            `json:"out"`
	HasAlpha      bool              `json:"hasAlpha"`
	FileSizeBytes int64             `json:"fileSizeBytes"`
	Issues        []AcceptanceIssue `json:"issues"`
}

// AcceptanceReport is the kind "acceptance-report" contract document
// (spec §4.7): one entry per processed target recording alpha presence,
// byte size and any hard-gate violations. Final dimensions are checked
// against the declared size (a mismatch is a size_mismatch issue) but
// are not stored in the entry.
type AcceptanceReport struct {
	ContractVersion string             `json:"contractVersion"`
	Targets         []AcceptanceTarget `json:"targets"`
}

// Write validates and serializes the report to artifactPath.
func (r *AcceptanceReport) Write(artifactPath string) error {
	return contract.WriteValidated(contract.KindAcceptanceReport, r, artifactPath)
}

// NewAcceptanceTarget builds one report entry from a completed Run,
// checking the final output's byte size against the declared budget and
// its dimensions against the declared acceptance size.
func NewAcceptanceTarget(targetID, out string, hasAlpha bool, result *Result, wantW, wantH int, maxFileSizeKB float64) (AcceptanceTarget, error) {
	info, err := os.Stat(result.OutputPath)
	if err != nil {
		return AcceptanceTarget{}, err
	}

	t := AcceptanceTarget{
		ID:            targetID,
		Out:           out,
		HasAlpha:      hasAlpha,
		FileSizeBytes: info.Size(),
	}

	if wantW > 0 && wantH > 0 && (result.Width != wantW || result.Height != wantH) {
		t.Issues = append(t.Issues, AcceptanceIssue{
			Level: "error", Code: "size_mismatch",
			Message: "processed output dimensions do not match declared acceptance size",
		})
	}
	if maxFileSizeKB > 0 && float64(t.FileSizeBytes) > maxFileSizeKB*1024 {
		t.Issues = append(t.Issues, AcceptanceIssue{
			Level: "error", Code: "exceeds_file_size_budget",
			Message: "processed output exceeds declared file size budget",
		})
	}
	if result.Aborted {
		t.Issues = append(t.Issues, AcceptanceIssue{
			Level: "error", Code: "pipeline_aborted",
			Message: "post-process pipeline aborted in strict mode",
		})
	}
	return t, nil
}

// Package contract freezes the schema of every JSON document that
// crosses a stage boundary (spec §4.1). Every kind is versioned by a
// single module-level STAGE_ARTIFACT_CONTRACT_VERSION string; bumping it
// is the only supported way to evolve the inter-stage wire format.
package contract

import (
	"encoding/json"
	"fmt"
	"os"
)

// Version is bumped, never silently, whenever any of the five schemas
// below changes shape.
const Version = "1.0.0"

// Kind identifies one of the five stage-artifact document types.
type Kind string

const (
	KindTargetsIndex     Kind = "targets-index"
	KindProvenanceRun    Kind = "provenance-run"
	KindAcceptanceReport Kind = "acceptance-report"
	KindEvalReport       Kind = "eval-report"
	KindSelectionLock    Kind = "selection-lock"
)

// Diagnostic is a single schema-validation failure, with a JSON-pointer
// path rooted at "$" (spec §4.1 edge policy).
type Diagnostic struct {
	Path    []string `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// PointerString renders the diagnostic's path as a dotted/bracketed JSON
// pointer, e.g. "$.targets[2].out".
func (d Diagnostic) PointerString() string {
	s := "$"
	for _, seg := range d.Path {
		if seg == "" {
			continue
		}
		if seg[0] >= '0' && seg[0] <= '9' {
			s += "[" + seg + "]"
		} else {
			s += "." + seg
		}
	}
	return s
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s)", d.PointerString(), d.Message, d.Code)
}

// Error is returned by Validate/ReadAndValidate on schema failure.
type Error struct {
	ErrKind     string // "stage_artifact_contract_invalid" or "stage_artifact_json_invalid"
	Kind        Kind
	ArtifactPath string
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("%s: %s invalid (%s)", e.ErrKind, e.Kind, e.ArtifactPath)
	}
	return fmt.Sprintf("%s: %s invalid (%s): %s", e.ErrKind, e.Kind, e.ArtifactPath, e.Diagnostics[0].String())
}

// validator validates a decoded value, appending diagnostics rooted at
// the given path prefix.
type validator interface {
	validate(v map[string]interface{}, path []string) []Diagnostic
}

var registry = map[Kind]validator{
	KindTargetsIndex:     targetsIndexSchema{},
	KindProvenanceRun:    provenanceRunSchema{},
	KindAcceptanceReport: acceptanceReportSchema{},
	KindEvalReport:       evalReportSchema{},
	KindSelectionLock:    selectionLockSchema{},
}

// Validate validates a decoded in-memory value against kind. v is
// expected to already be JSON-shaped (map[string]interface{}, produced
// by json.Unmarshal into `any`, or a struct re-marshaled through JSON).
func Validate(kind Kind, v interface{}, artifactPath string) error {
	schema, ok := registry[kind]
	if !ok {
		return &Error{
			ErrKind:      "stage_artifact_contract_invalid",
			Kind:         kind,
			ArtifactPath: artifactPath,
			Diagnostics:  []Diagnostic{{Code: "unknown_kind", Message: fmt.Sprintf("no schema registered for kind %q", kind)}},
		}
	}

	asMap, err := toMap(v)
	if err != nil {
		return &Error{
			ErrKind:      "stage_artifact_contract_invalid",
			Kind:         kind,
			ArtifactPath: artifactPath,
			Diagnostics:  []Diagnostic{{Code: "not_an_object", Message: err.Error()}},
		}
	}

	diags := schema.validate(asMap, []string{})
	if len(diags) > 0 {
		return &Error{
			ErrKind:      "stage_artifact_contract_invalid",
			Kind:         kind,
			ArtifactPath: artifactPath,
			Diagnostics:  diags,
		}
	}
	return nil
}

// ReadAndValidate reads a UTF-8 JSON file, parses it, and validates it
// against kind. Read/parse failures fail with kind
// stage_artifact_json_invalid.
func ReadAndValidate(kind Kind, artifactPath string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, &Error{
			ErrKind:      "stage_artifact_json_invalid",
			Kind:         kind,
			ArtifactPath: artifactPath,
			Diagnostics:  []Diagnostic{{Code: "read_failed", Message: err.Error()}},
		}
	}
	var v map[string]interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &Error{
			ErrKind:      "stage_artifact_json_invalid",
			Kind:         kind,
			ArtifactPath: artifactPath,
			Diagnostics:  []Diagnostic{{Code: "parse_failed", Message: err.Error()}},
		}
	}
	if err := Validate(kind, v, artifactPath); err != nil {
		return nil, err
	}
	return v, nil
}

// WriteValidated marshals v, validates the round-tripped JSON shape
// against kind, and writes it to artifactPath only if valid.
func WriteValidated(kind Kind, v interface{}, artifactPath string) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("round-trip decode %s: %w", kind, err)
	}
	if err := Validate(kind, decoded, artifactPath); err != nil {
		return err
	}
	if err := os.WriteFile(artifactPath, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", artifactPath, err)
	}
	return nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// --- shared field helpers used by every per-kind schema file ---

func requireString(v map[string]interface{}, field string, path []string) (string, []Diagnostic) {
	raw, ok := v[field]
	if !ok {
		return "", []Diagnostic{{Path: append(path, field), Code: "required", Message: "missing required field"}}
	}
	s, ok := raw.(string)
	if !ok {
		return "", []Diagnostic{{Path: append(path, field), Code: "type_mismatch", Message: "expected string"}}
	}
	return s, nil
}

func requireArray(v map[string]interface{}, field string, path []string) ([]interface{}, []Diagnostic) {
	raw, ok := v[field]
	if !ok {
		return nil, []Diagnostic{{Path: append(path, field), Code: "required", Message: "missing required field"}}
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, []Diagnostic{{Path: append(path, field), Code: "type_mismatch", Message: "expected array"}}
	}
	return arr, nil
}

func requireObject(v map[string]interface{}, field string, path []string) (map[string]interface{}, []Diagnostic) {
	raw, ok := v[field]
	if !ok {
		return nil, []Diagnostic{{Path: append(path, field), Code: "required", Message: "missing required field"}}
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, []Diagnostic{{Path: append(path, field), Code: "type_mismatch", Message: "expected object"}}
	}
	return obj, nil
}

func requireBool(v map[string]interface{}, field string, path []string) (bool, []Diagnostic) {
	raw, ok := v[field]
	if !ok {
		return false, []Diagnostic{{Path: append(path, field), Code: "required", Message: "missing required field"}}
	}
	b, ok := raw.(bool)
	if !ok {
		return false, []Diagnostic{{Path: append(path, field), Code: "type_mismatch", Message: "expected bool"}}
	}
	return b, nil
}

func requireNumber(v map[string]interface{}, field string, path []string) (float64, []Diagnostic) {
	raw, ok := v[field]
	if !ok {
		return 0, []Diagnostic{{Path: append(path, field), Code: "required", Message: "missing required field"}}
	}
	n, ok := raw.(float64)
	if !ok {
		return 0, []Diagnostic{{Path: append(path, field), Code: "type_mismatch", Message: "expected number"}}
	}
	return n, nil
}

func enumCheck(value, field string, allowed []string, path []string) []Diagnostic {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []Diagnostic{{Path: append(path, field), Code: "enum_mismatch", Message: fmt.Sprintf("%q is not one of %v", value, allowed)}}
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

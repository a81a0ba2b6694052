package contract_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Someblueman/lootforge/internal/contract"
)

func TestValidate_TargetsIndex_Valid(t *testing.T) {
	v := map[string]interface{}{
		"contractVersion": contract.Version,
		"inputHash":       "abc123",
		"targets": []interface{}{
			map[string]interface{}{
				"id":       "hero",
				"kind":     "sprite",
				"out":      "hero.png",
				"provider": "openai",
			},
		},
	}
	err := contract.Validate(contract.KindTargetsIndex, v, "targets-index.json")
	require.NoError(t, err)
}

func TestValidate_TargetsIndex_DuplicateOut(t *testing.T) {
	v := map[string]interface{}{
		"contractVersion": contract.Version,
		"inputHash":       "abc123",
		"targets": []interface{}{
			map[string]interface{}{"id": "a", "kind": "sprite", "out": "Sprites/Hero.png", "provider": "openai"},
			map[string]interface{}{"id": "b", "kind": "sprite", "out": `sprites\hero.png`, "provider": "openai"},
		},
	}
	err := contract.Validate(contract.KindTargetsIndex, v, "targets-index.json")
	require.Error(t, err)
	var cerr *contract.Error
	require.ErrorAs(t, err, &cerr)
	found := false
	for _, d := range cerr.Diagnostics {
		if d.Code == "duplicate_target_out" {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate_target_out diagnostic, got %+v", cerr.Diagnostics)
}

func TestValidate_UnknownKind(t *testing.T) {
	err := contract.Validate(contract.Kind("bogus"), map[string]interface{}{}, "x.json")
	require.Error(t, err)
}

func TestReadAndValidate_MissingFile(t *testing.T) {
	_, err := contract.ReadAndValidate(contract.KindEvalReport, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	var cerr *contract.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "stage_artifact_json_invalid", cerr.ErrKind)
}

func TestWriteValidated_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	lock := map[string]interface{}{
		"contractVersion": contract.Version,
		"targets": []interface{}{
			map[string]interface{}{"id": "hero", "approved": false, "inputHash": "abc"},
		},
	}
	path := filepath.Join(dir, "selection-lock.json")
	require.NoError(t, contract.WriteValidated(contract.KindSelectionLock, lock, path))

	decoded, err := contract.ReadAndValidate(contract.KindSelectionLock, path)
	require.NoError(t, err)
	targets := decoded["targets"].([]interface{})
	require.Len(t, targets, 1)
}

package service

import (
	"encoding/json"
	"fmt"

	"github.com/Someblueman/lootforge/internal/contract"
)

// readArtifact mirrors cmd/lootforge/artifact.go: re-validate a prior
// stage's artifact through C1 before decoding it into a concrete type.
func readArtifact(kind contract.Kind, path string, out interface{}) error {
	decoded, err := contract.ReadAndValidate(kind, path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("re-marshal %s: %w", kind, err)
	}
	return json.Unmarshal(raw, out)
}

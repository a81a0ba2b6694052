package main

import (
	"encoding/json"
	"fmt"

	"github.com/Someblueman/lootforge/internal/contract"
)

// readArtifact re-validates a prior stage's artifact through C1 before
// decoding it into a concrete Go type, per spec §7's "stages that depend
// on a prior artifact re-validate it through C1 on entry" propagation
// policy.
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

package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeJobID hashes the canonical content tuple from spec §3: a
// ProviderJob's id is a pure function of (provider, model, target id,
// target out, prompt, size, quality, background, format, candidate
// count, input hash). Rerunning with identical inputs yields the same
// id (spec invariant 4), on this or any other machine.
func ComputeJobID(provider, model, targetID, targetOut, prompt, size, quality, background, format string, candidateCount int, inputHash string) string {
	canonical := fmt.Sprintf(
		"provider=%s\x00model=%s\x00target=%s\x00out=%s\x00prompt=%s\x00size=%s\x00quality=%s\x00background=%s\x00format=%s\x00candidates=%d\x00inputHash=%s",
		provider, model, targetID, targetOut, prompt, size, quality, background, format, candidateCount, inputHash,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// HashBytes computes the sha256 hex digest of arbitrary bytes, used both
// for the targets-index inputHash and for edit-spec input hashing.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EditInputHash hashes a target's edit-spec input paths+roles so that
// ComputeJobID's "input-hash" component reflects which base/mask/
// reference images an edit-first job was built from. A target with no
// edit spec hashes to the empty string.
func EditInputHash(t *PlannedTarget) string {
	if t.EditSpec == nil || len(t.EditSpec.Inputs) == 0 {
		return ""
	}
	var b []byte
	for _, in := range t.EditSpec.Inputs {
		b = append(b, []byte(in.Role+"="+in.Path+";")...)
	}
	return HashBytes(b)
}

// Package fingerprint hashes models and query trees. Model fingerprints are
// stable across processes and detect drift between a migration snapshot and
// the current model; query hashes key the generated SQL cache.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/pgschema/relmig/model"
)

// ModelFingerprint represents a fingerprint of a model state
type ModelFingerprint struct {
	Hash string `json:"hash"` // SHA256 of the JSON form of the model
}

// ComputeFingerprint generates a fingerprint for the given model. A nil
// model has the fingerprint of an empty database.
func ComputeFingerprint(m *model.Model) (*ModelFingerprint, error) {
	if m == nil {
		m = &model.Model{}
	}
	hash, err := hashObject(m)
	if err != nil {
		return nil, fmt.Errorf("failed to compute model hash: %w", err)
	}
	return &ModelFingerprint{Hash: hash}, nil
}

// hashObject computes a SHA256 hash of any object
func hashObject(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// String returns a human-readable representation of the fingerprint
func (f *ModelFingerprint) String() string {
	if len(f.Hash) >= 8 {
		return fmt.Sprintf("Model fingerprint: %s", f.Hash[:8])
	}
	return fmt.Sprintf("Model fingerprint: %s", f.Hash)
}

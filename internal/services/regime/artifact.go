package regime

import (
	"encoding/json"
	"fmt"
	"os"

	"MeanRev/internal/domain/models"
)

// Artifact is the pretrained classifier loaded at startup. A multinomial
// logit over the schema's feature vector: probs = softmax(W·x + b) with
// W of shape 3×len(Features). EntropyBaseline optionally carries the
// training-time histogram of verdict entropies, binned over [0, ln 3],
// that live entropies are compared against for KL drift.
type Artifact struct {
	Schema          models.FeatureSchema `json:"schema"`
	Features        []string             `json:"features"`
	Weights         [][]float64          `json:"weights"`
	Bias            []float64            `json:"bias"`
	EntropyBaseline []float64            `json:"baseline,omitempty"`
}

// LoadArtifact reads and validates a classifier artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("validate artifact: %w", err)
	}
	return &a, nil
}

// Validate checks the artifact's shape against its declared schema.
func (a *Artifact) Validate() error {
	want := models.SchemaFeatures(a.Schema)
	if len(a.Features) != len(want) {
		return fmt.Errorf("expected %d features for schema %s, got %d", len(want), a.Schema, len(a.Features))
	}
	for i, name := range want {
		if a.Features[i] != name {
			return fmt.Errorf("feature %d: expected %s, got %s", i, name, a.Features[i])
		}
	}
	if len(a.Weights) != 3 {
		return fmt.Errorf("expected 3 weight rows, got %d", len(a.Weights))
	}
	for i, row := range a.Weights {
		if len(row) != len(a.Features) {
			return fmt.Errorf("weight row %d: expected %d columns, got %d", i, len(a.Features), len(row))
		}
	}
	if len(a.Bias) != 3 {
		return fmt.Errorf("expected 3 bias terms, got %d", len(a.Bias))
	}
	return nil
}

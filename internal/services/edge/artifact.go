package edge

import (
	"encoding/json"
	"fmt"
	"os"

	"MeanRev/internal/domain/models"
)

// Artifact is the pretrained edge model. Over the schema's ordered
// feature vector x it yields:
//
//	expected_return = RetWeights·x + RetBias        (per-bar fraction)
//	win_prob        = sigmoid(WinWeights·x + WinBias)
//	cvar            = -|CVaRWeights·x + CVaRBias|   (≤ 0 by construction)
type Artifact struct {
	Schema      models.FeatureSchema `json:"schema"`
	Features    []string             `json:"features"`
	RetWeights  []float64            `json:"ret_weights"`
	RetBias     float64              `json:"ret_bias"`
	WinWeights  []float64            `json:"win_weights"`
	WinBias     float64              `json:"win_bias"`
	CVaRWeights []float64            `json:"cvar_weights"`
	CVaRBias    float64              `json:"cvar_bias"`
}

// LoadArtifact reads and validates an edge artifact from disk.
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

// Validate checks weight shapes against the declared schema.
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
	for name, w := range map[string][]float64{
		"ret_weights":  a.RetWeights,
		"win_weights":  a.WinWeights,
		"cvar_weights": a.CVaRWeights,
	} {
		if len(w) != len(a.Features) {
			return fmt.Errorf("%s: expected %d terms, got %d", name, len(a.Features), len(w))
		}
	}
	return nil
}

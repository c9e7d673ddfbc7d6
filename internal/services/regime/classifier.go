package regime

import (
	"errors"
	"fmt"
	"math"
	"time"

	"MeanRev/internal/domain/models"
	domsvc "MeanRev/internal/domain/service"
	applogger "MeanRev/pkg/logger"
)

// ErrNoArtifact marks the no-verdict condition when no classifier
// artifact is loaded. Callers must treat it as "do not trade", not as a
// crash.
var ErrNoArtifact = errors.New("regime artifact not loaded")

// probEpsilon clips probabilities away from 0 before the logarithm.
const probEpsilon = 1e-10

// Classifier turns the latest feature vector into regime probabilities,
// an entropy score and a tradeable verdict.
type Classifier struct {
	art              *Artifact
	stableThreshold  float64
	entropyThreshold float64
	l                *applogger.Logger
}

// NewClassifier loads the artifact at path. Artifact absence is a
// recoverable condition: the classifier starts in no-verdict mode and
// logs a warning instead of failing startup.
func NewClassifier(path string, stableThreshold, entropyThreshold float64, l *applogger.Logger) *Classifier {
	c := &Classifier{
		stableThreshold:  stableThreshold,
		entropyThreshold: entropyThreshold,
		l:                l,
	}
	if path == "" {
		l.Warn("regime classifier: no artifact path configured")
		return c
	}
	art, err := LoadArtifact(path)
	if err != nil {
		l.Warn("regime classifier: artifact unavailable",
			applogger.String("path", path),
			applogger.Error(err),
		)
		return c
	}
	c.art = art
	l.Info("regime classifier: artifact loaded",
		applogger.String("path", path),
		applogger.String("schema", string(art.Schema)),
	)
	return c
}

// Ready reports whether an artifact is loaded.
func (c *Classifier) Ready() bool { return c.art != nil }

// Schema returns the feature-set schema the artifact expects.
func (c *Classifier) Schema() models.FeatureSchema {
	if c.art == nil {
		return models.SchemaLegacy
	}
	return c.art.Schema
}

// Baseline returns the training-time entropy histogram, if the
// artifact carries one.
func (c *Classifier) Baseline() []float64 {
	if c.art == nil {
		return nil
	}
	return c.art.EntropyBaseline
}

// Predict maps the feature vector to a regime verdict. A nil result
// means no verdict: missing artifact or failed inference, both surfaced
// as an error for the caller to log, never a crash.
func (c *Classifier) Predict(fv models.FeatureVector) (*models.RegimeResult, error) {
	if c.art == nil {
		return nil, ErrNoArtifact
	}
	if fv.Schema != c.art.Schema {
		return nil, fmt.Errorf("feature schema %s does not match artifact schema %s", fv.Schema, c.art.Schema)
	}
	x := fv.Ordered()
	if len(x) != len(c.art.Features) {
		return nil, fmt.Errorf("expected %d features, got %d", len(c.art.Features), len(x))
	}

	logits := make([]float64, 3)
	for i := 0; i < 3; i++ {
		z := c.art.Bias[i]
		for j, v := range x {
			z += c.art.Weights[i][j] * v
		}
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return nil, fmt.Errorf("non-finite logit for class %d", i)
		}
		logits[i] = z
	}
	probs := softmax(logits)
	entropy := Entropy(probs)

	res := &models.RegimeResult{
		ProbStable:      probs[0],
		ProbDirectional: probs[1],
		ProbEvent:       probs[2],
		Entropy:         entropy,
		Timestamp:       time.Now().UTC(),
	}
	res.Tradeable = res.ProbStable > c.stableThreshold && entropy < c.entropyThreshold
	return res, nil
}

// Entropy computes Shannon entropy -Σ p ln p with each probability
// clipped to [1e-10, 1] before the logarithm.
func Entropy(probs []float64) float64 {
	h := 0.0
	for _, p := range probs {
		if p < probEpsilon {
			p = probEpsilon
		}
		if p > 1.0 {
			p = 1.0
		}
		h -= p * math.Log(p)
	}
	if h < 0 {
		h = 0
	}
	return h
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, z := range logits[1:] {
		if z > max {
			max = z
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, z := range logits {
		out[i] = math.Exp(z - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var _ domsvc.RegimeClassifier = (*Classifier)(nil)

package edge

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"MeanRev/internal/domain/models"
	domsvc "MeanRev/internal/domain/service"
	applogger "MeanRev/pkg/logger"
)

// ErrNoEstimator is returned by the explicit-fail estimator. In a
// production configuration a missing edge model fails loudly instead of
// degrading to a randomized estimate.
var ErrNoEstimator = errors.New("edge estimator unavailable")

// ModelEstimator evaluates the pretrained edge artifact.
type ModelEstimator struct {
	art *Artifact
}

// NewModelEstimator wraps a loaded artifact.
func NewModelEstimator(art *Artifact) *ModelEstimator {
	return &ModelEstimator{art: art}
}

// Estimate computes the edge triple from the feature vector.
func (m *ModelEstimator) Estimate(fv models.FeatureVector) (models.EdgeEstimate, error) {
	if fv.Schema != m.art.Schema {
		return models.EdgeEstimate{}, fmt.Errorf("feature schema %s does not match artifact schema %s", fv.Schema, m.art.Schema)
	}
	x := fv.Ordered()
	er := dot(m.art.RetWeights, x) + m.art.RetBias
	wp := sigmoid(dot(m.art.WinWeights, x) + m.art.WinBias)
	cv := -math.Abs(dot(m.art.CVaRWeights, x) + m.art.CVaRBias)
	for name, v := range map[string]float64{"expected_return": er, "win_prob": wp, "cvar": cv} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.EdgeEstimate{}, fmt.Errorf("non-finite %s", name)
		}
	}
	return models.EdgeEstimate{ExpectedReturn: er, WinProb: wp, CVaR: cv}, nil
}

// FailEstimator is the production stand-in when no artifact is loaded:
// every call errors so the absence is loud.
type FailEstimator struct{}

func (FailEstimator) Estimate(models.FeatureVector) (models.EdgeEstimate, error) {
	return models.EdgeEstimate{}, ErrNoEstimator
}

// MockEstimator emits randomized estimates for development and test
// builds. Confined behind an explicit configuration flag, never the
// default.
type MockEstimator struct {
	rng *rand.Rand
}

// NewMockEstimator seeds the mock's own generator so runs are
// reproducible in tests.
func NewMockEstimator(seed int64) *MockEstimator {
	return &MockEstimator{rng: rand.New(rand.NewSource(seed))}
}

func (m *MockEstimator) Estimate(models.FeatureVector) (models.EdgeEstimate, error) {
	return models.EdgeEstimate{
		ExpectedReturn: m.rng.NormFloat64()*0.0002 + 0.0005,
		WinProb:        0.50 + m.rng.Float64()*0.15,
		CVaR:           -0.02,
	}, nil
}

// NewEstimator selects the estimator variant: artifact-backed when the
// artifact loads, mock when explicitly allowed, explicit-fail otherwise.
func NewEstimator(path string, allowMock bool, mockSeed int64, l *applogger.Logger) domsvc.SignalEstimator {
	if path != "" {
		art, err := LoadArtifact(path)
		if err == nil {
			l.Info("edge model loaded", applogger.String("path", path), applogger.String("schema", string(art.Schema)))
			return NewModelEstimator(art)
		}
		l.Warn("edge model unavailable", applogger.String("path", path), applogger.Error(err))
	}
	if allowMock {
		l.Warn("edge estimator: using mock estimates, not for production")
		return NewMockEstimator(mockSeed)
	}
	l.Warn("edge estimator: no model loaded, signals will fail loudly")
	return FailEstimator{}
}

func dot(w, x []float64) float64 {
	s := 0.0
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

var _ domsvc.SignalEstimator = (*ModelEstimator)(nil)
var _ domsvc.SignalEstimator = (*MockEstimator)(nil)
var _ domsvc.SignalEstimator = FailEstimator{}

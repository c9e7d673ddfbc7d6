package models

import "math"

// FeatureSchema identifies which feature set a vector satisfies. The two
// sets are independent and versioned by the classifier artifact that was
// trained on them.
type FeatureSchema string

const (
	// SchemaLegacy: log_return, gk_vol, spread_factor, displacement_pct, session_vol.
	SchemaLegacy FeatureSchema = "legacy"
	// SchemaNPLR: displacement_rank, rel_vol, rel_liq, fragility_idx.
	SchemaNPLR FeatureSchema = "nplr"
)

// Standard feature names.
const (
	FeatLogReturn       = "log_return"
	FeatGKVol           = "gk_vol"
	FeatSpreadFactor    = "spread_factor"
	FeatDisplacementPct = "displacement_pct"
	FeatSessionVol      = "session_vol"

	FeatDisplacementRank = "displacement_rank"
	FeatRelVol           = "rel_vol"
	FeatRelLiq           = "rel_liq"
	FeatFragilityIdx     = "fragility_idx"
)

// SchemaFeatures lists the required feature names for a schema, in the
// order the classifier artifact expects them.
func SchemaFeatures(s FeatureSchema) []string {
	switch s {
	case SchemaNPLR:
		return []string{FeatDisplacementRank, FeatRelVol, FeatRelLiq, FeatFragilityIdx}
	default:
		return []string{FeatLogReturn, FeatGKVol, FeatSpreadFactor, FeatDisplacementPct, FeatSessionVol}
	}
}

// FeatureVector maps feature names to finite values. A feature that
// cannot be computed from the available history is marked undefined
// (NaN) rather than silently reusing a stale value; zero-filling is a
// call-site decision, never done inside the engine.
type FeatureVector struct {
	Schema FeatureSchema
	Values map[string]float64
}

// Undefined is the sentinel stored for features lacking history.
func Undefined() float64 { return math.NaN() }

// IsDefined reports whether v carries a computed value.
func IsDefined(v float64) bool { return !math.IsNaN(v) }

// Get returns the named feature and whether it is present and defined.
func (fv FeatureVector) Get(name string) (float64, bool) {
	v, ok := fv.Values[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Complete reports whether every feature required by the vector's schema
// is present and defined.
func (fv FeatureVector) Complete() bool {
	for _, name := range SchemaFeatures(fv.Schema) {
		if _, ok := fv.Get(name); !ok {
			return false
		}
	}
	return true
}

// Ordered returns the schema's features in artifact order, with
// undefined entries zero-filled. This is the call-site fill policy used
// right before model inference.
func (fv FeatureVector) Ordered() []float64 {
	names := SchemaFeatures(fv.Schema)
	out := make([]float64, len(names))
	for i, name := range names {
		if v, ok := fv.Get(name); ok {
			out[i] = v
		}
	}
	return out
}

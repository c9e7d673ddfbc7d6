package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
environment: test
pipeline:
  pair: EURUSD
  tick_interval: 2s
`

func TestLoadMinimal(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "EURUSD", c.Pipeline.Pair)
	assert.Equal(t, 2*time.Second, c.Pipeline.TickInterval)

	// absent keys stay nil so the services apply their own defaults
	assert.Nil(t, c.Edge.Cost)
	assert.Nil(t, c.Edge.MaxCVaR)
	assert.Nil(t, c.Drift.ICDecommission)
}

func TestLoadRiskThrottleAndDrift(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig+`
risk:
  initial_equity: 10000
  vol_target: 0.15
  throttle_soft: 0.03
  throttle_hard: 0.05
  soft_modifier: 0.5
  hard_modifier: 0.25
drift:
  window: 500
  ic_reduce: 0.02
  ic_decommission: -0.01
`))
	require.NoError(t, err)
	assert.Equal(t, 0.03, c.Risk.ThrottleSoft)
	assert.Equal(t, 0.05, c.Risk.ThrottleHard)
	assert.Equal(t, 0.5, c.Risk.SoftModifier)
	assert.Equal(t, 0.25, c.Risk.HardModifier)
	require.NotNil(t, c.Drift.ICDecommission)
	assert.Equal(t, -0.01, *c.Drift.ICDecommission)
}

func TestLoadExplicitZeroEdgeThresholds(t *testing.T) {
	// an explicit 0 must survive the parse, distinct from an absent key
	c, err := Load(writeConfig(t, minimalConfig+`
edge:
  cost: 0
  max_cvar: 0
`))
	require.NoError(t, err)
	require.NotNil(t, c.Edge.Cost)
	assert.Equal(t, 0.0, *c.Edge.Cost)
	require.NotNil(t, c.Edge.MaxCVaR)
	assert.Equal(t, 0.0, *c.Edge.MaxCVaR)
}

func TestValidateRejectsBadPair(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
pipeline:
  pair: EUR
`))
	assert.Error(t, err)
}

func TestValidateRejectsMockInProduction(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: production
pipeline:
  pair: EURUSD
edge:
  allow_mock: true
`))
	assert.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PAIR", "USDJPY")
	t.Setenv("REDIS_HOST", "redis.internal")

	c, err := LoadWithEnv(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "USDJPY", c.Pipeline.Pair)
	assert.Equal(t, "redis.internal", c.Redis.Host)
}

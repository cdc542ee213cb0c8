package config

import (
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "XYZ", cfg.Symbol)
	assert.Equal(t, 0.01, cfg.Price.Min)
	assert.Equal(t, 1000.00, cfg.Price.Max)
	assert.Equal(t, int64(1), cfg.Price.TickNum)
	assert.Equal(t, int64(100), cfg.Price.TickDenom)
	assert.Equal(t, 1024, cfg.Dispatch.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDefaultsPassValidation(t *testing.T) {
	c := &Config{}
	setDefaults(c)
	assert.NoError(t, validator.New().Struct(c))
}

func TestValidationRejectsMaxBelowMin(t *testing.T) {
	c := &Config{}
	setDefaults(c)
	c.Price.Max = c.Price.Min - 1
	assert.Error(t, validator.New().Struct(c))
}

func TestValidationRejectsMissingSymbol(t *testing.T) {
	c := &Config{}
	setDefaults(c)
	c.Symbol = ""
	assert.Error(t, validator.New().Struct(c))
}

func TestValidationRejectsUnknownLogLevel(t *testing.T) {
	c := &Config{}
	setDefaults(c)
	c.Log.Level = "trace"
	assert.Error(t, validator.New().Struct(c))
}

func TestValidationRejectsZeroQueueSize(t *testing.T) {
	c := &Config{}
	setDefaults(c)
	c.Dispatch.QueueSize = 0
	assert.Error(t, validator.New().Struct(c))
}

// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "phpsca", cfg.Logger().ServiceName)
	assert.Equal(t, 50, cfg.Analysis().MaxCallDepth)
	assert.Equal(t, 1_000_000, cfg.Analysis().MaxSteps)
	assert.Equal(t, UnknownCallsOpaque, cfg.Analysis().UnknownCalls)
	assert.Equal(t, 4, cfg.Scan().Concurrency)
	assert.Equal(t, "text", cfg.Scan().Format)
	assert.Equal(t, []string{".php"}, cfg.Scan().Extensions)
	assert.Equal(t, "info", cfg.Scan().MinSeverity)
	assert.NoError(t, cfg.Validate(), "defaults must be valid")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Scan Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		invalidConcurrency := *cfg
		invalidConcurrency.ScanCfg.Concurrency = 0
		err := invalidConcurrency.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan.concurrency must be a positive integer")

		invalidFormat := *cfg
		invalidFormat.ScanCfg.Format = "html"
		err = invalidFormat.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan.format must be one of")

		upper := *cfg
		upper.ScanCfg.Format = "SARIF"
		assert.NoError(t, upper.Validate())

		invalidSeverity := *cfg
		invalidSeverity.ScanCfg.MinSeverity = "severe"
		err = invalidSeverity.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan.min_severity must be one of")
	})

	t.Run("Analysis Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Analysis()
		assert.NoError(t, valid.Validate())

		depth := valid
		depth.MaxCallDepth = 0
		err := depth.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_call_depth must be a positive integer")

		steps := valid
		steps.MaxSteps = -1
		err = steps.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps must be a positive integer")

		policy := valid
		policy.UnknownCalls = "guess"
		err = policy.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `unknown_calls must be "opaque" or "propagate"`)

		propagate := valid
		propagate.UnknownCalls = UnknownCallsPropagate
		assert.NoError(t, propagate.Validate())
	})

	t.Run("Nested Errors Are Prefixed", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.AnalysisCfg.MaxSteps = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "analysis configuration invalid")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
analysis:
  max_call_depth: 8
  unknown_calls: propagate
scan:
  concurrency: 2
  format: sarif
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 8, cfg.Analysis().MaxCallDepth)
		assert.Equal(t, UnknownCallsPropagate, cfg.Analysis().UnknownCalls)
		assert.Equal(t, 2, cfg.Scan().Concurrency)
		assert.Equal(t, "sarif", cfg.Scan().Format)
		// Untouched keys keep their defaults.
		assert.Equal(t, 1_000_000, cfg.Analysis().MaxSteps)
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("scan.concurrency", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "scan.concurrency must be a positive integer")
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/phpsca.log
analysis:
  extra_superglobals: ["$_ENV"]
  extra_sinks:
    sql_injection: ["db_exec"]
  extra_sanitizers:
    clean_all: ["XSS", "SQL_INJECTION"]
  extra_propagators: ["my_trim"]
  extra_source_functions: ["read_header"]
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlInput)))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/phpsca.log", cfg.Logger().LogFile)

	analysis := cfg.Analysis()
	assert.Equal(t, []string{"$_ENV"}, analysis.ExtraSuperglobals)
	assert.Equal(t, []string{"db_exec"}, analysis.ExtraSinks["sql_injection"])
	assert.ElementsMatch(t, []string{"XSS", "SQL_INJECTION"}, analysis.ExtraSanitizers["clean_all"])
	assert.Equal(t, []string{"my_trim"}, analysis.ExtraPropagators)
	assert.Equal(t, []string{"read_header"}, analysis.ExtraSourceFunctions)
}

func TestSetScanConfig(t *testing.T) {
	var iface Interface = NewDefaultConfig()
	sc := iface.Scan()
	sc.Targets = []string{"a.php", "src/"}
	sc.FailOnFindings = true
	iface.SetScanConfig(sc)

	assert.Equal(t, []string{"a.php", "src/"}, iface.Scan().Targets)
	assert.True(t, iface.Scan().FailOnFindings)
}

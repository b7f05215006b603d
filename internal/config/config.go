// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Analysis() AnalysisConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	ScanCfg     ScanConfig     `mapstructure:"scan" yaml:"scan"`
}

func (c *Config) Logger() LoggerConfig        { return c.LoggerCfg }
func (c *Config) Analysis() AnalysisConfig    { return c.AnalysisCfg }
func (c *Config) Scan() ScanConfig            { return c.ScanCfg }
func (c *Config) SetScanConfig(sc ScanConfig) { c.ScanCfg = sc }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Unknown call policies.
const (
	UnknownCallsOpaque    = "opaque"
	UnknownCallsPropagate = "propagate"
)

// AnalysisConfig tunes the taint engine. The Extra* fields are added on top of
// the built-in classification tables.
type AnalysisConfig struct {
	MaxCallDepth int    `mapstructure:"max_call_depth" yaml:"max_call_depth"`
	MaxSteps     int    `mapstructure:"max_steps" yaml:"max_steps"`
	UnknownCalls string `mapstructure:"unknown_calls" yaml:"unknown_calls"`

	ExtraSuperglobals []string `mapstructure:"extra_superglobals" yaml:"extra_superglobals"`
	// ExtraSinks maps a vulnerability class to additional sink functions.
	ExtraSinks map[string][]string `mapstructure:"extra_sinks" yaml:"extra_sinks"`
	// ExtraSanitizers maps a function to the classes it neutralizes.
	ExtraSanitizers      map[string][]string `mapstructure:"extra_sanitizers" yaml:"extra_sanitizers"`
	ExtraPropagators     []string            `mapstructure:"extra_propagators" yaml:"extra_propagators"`
	ExtraSourceFunctions []string            `mapstructure:"extra_source_functions" yaml:"extra_source_functions"`
}

// ScanConfig holds settings for a single CLI run. Output and format usually come from flags.
type ScanConfig struct {
	Concurrency    int      `mapstructure:"concurrency" yaml:"concurrency"`
	Format         string   `mapstructure:"format" yaml:"format"`
	Output         string   `mapstructure:"output" yaml:"output"`
	Extensions     []string `mapstructure:"extensions" yaml:"extensions"`
	FailOnFindings bool     `mapstructure:"fail_on_findings" yaml:"fail_on_findings"`
	MinSeverity    string   `mapstructure:"min_severity" yaml:"min_severity"`
	Targets        []string `mapstructure:"-" yaml:"-"`
}

// NewDefaultConfig creates a configuration populated with the default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshalling defaults into a fresh struct cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers every default value with the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "phpsca")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Analysis --
	v.SetDefault("analysis.max_call_depth", 50)
	v.SetDefault("analysis.max_steps", 1_000_000)
	v.SetDefault("analysis.unknown_calls", UnknownCallsOpaque)

	// -- Scan --
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.format", "text")
	v.SetDefault("scan.output", "stdout")
	v.SetDefault("scan.extensions", []string{".php"})
	v.SetDefault("scan.fail_on_findings", false)
	v.SetDefault("scan.min_severity", "info")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AnalysisCfg.Validate(); err != nil {
		return fmt.Errorf("analysis configuration invalid: %w", err)
	}
	if c.ScanCfg.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be a positive integer")
	}
	switch strings.ToLower(c.ScanCfg.Format) {
	case "text", "json", "yaml", "sarif":
	default:
		return fmt.Errorf("scan.format must be one of text, json, yaml, sarif (got %q)", c.ScanCfg.Format)
	}
	switch strings.ToLower(c.ScanCfg.MinSeverity) {
	case "", "info", "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("scan.min_severity must be one of info, low, medium, high, critical (got %q)", c.ScanCfg.MinSeverity)
	}
	return nil
}

// Validate checks the analysis settings.
func (a *AnalysisConfig) Validate() error {
	if a.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be a positive integer")
	}
	if a.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be a positive integer")
	}
	switch a.UnknownCalls {
	case UnknownCallsOpaque, UnknownCallsPropagate:
	default:
		return fmt.Errorf("unknown_calls must be %q or %q (got %q)", UnknownCallsOpaque, UnknownCallsPropagate, a.UnknownCalls)
	}
	return nil
}

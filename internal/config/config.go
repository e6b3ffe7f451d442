package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is the run manifest looked up in the working directory.
const DefaultFile = "app.yaml"

// Config holds all application configuration.
type Config struct {
	Options Options       `mapstructure:"options"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Solver  SolverConfig  `mapstructure:"solver"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Options are the per-run switches an operator sets in the manifest.
type Options struct {
	Solver     string        `mapstructure:"solver"`
	LimitDairy bool          `mapstructure:"limit_dairy"`
	DairyLimit float64       `mapstructure:"dairy_limit"`
	Trace      bool          `mapstructure:"trace"`
	TimeLimit  time.Duration `mapstructure:"time_limit"`
}

// PathsConfig locates inputs and outputs relative to the working directory.
type PathsConfig struct {
	Input      string `mapstructure:"input"`
	Solution   string `mapstructure:"solution"`
	Statistics string `mapstructure:"statistics"`
	Assets     string `mapstructure:"assets"`
}

type SolverConfig struct {
	// HighsPath overrides the HiGHS executable looked up on PATH.
	HighsPath string `mapstructure:"highs_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in Prometheus text format.
	Textfile string `mapstructure:"textfile"`
}

// Default returns the configuration used when no manifest exists.
func Default() *Config {
	return &Config{
		Options: Options{
			Solver:     "simplex",
			DairyLimit: 6,
		},
		Paths: PathsConfig{
			Input:      "inputs/diet.yaml",
			Solution:   "outputs/diet_solution.txt",
			Statistics: "statistics.json",
			Assets:     "assets.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "ration",
			Environment: "development",
			SampleRate:  1.0,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("options.solver", d.Options.Solver)
	v.SetDefault("options.limit_dairy", d.Options.LimitDairy)
	v.SetDefault("options.dairy_limit", d.Options.DairyLimit)
	v.SetDefault("options.trace", d.Options.Trace)
	v.SetDefault("options.time_limit", d.Options.TimeLimit)
	v.SetDefault("paths.input", d.Paths.Input)
	v.SetDefault("paths.solution", d.Paths.Solution)
	v.SetDefault("paths.statistics", d.Paths.Statistics)
	v.SetDefault("paths.assets", d.Paths.Assets)
	v.SetDefault("solver.highs_path", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("metrics.textfile", "")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Options.DairyLimit < 0 {
		warnings = append(warnings, fmt.Sprintf("options.dairy_limit %.2f is negative; the dairy extension will refuse it", c.Options.DairyLimit))
	}
	if c.Options.TimeLimit < 0 {
		warnings = append(warnings, fmt.Sprintf("options.time_limit %s is negative and will be ignored", c.Options.TimeLimit))
	}
	if c.Options.Solver == "" {
		warnings = append(warnings, "options.solver is empty; the default solver will be used")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("log.level '%s' is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log.format '%s' is not one of text, json", c.Log.Format))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing.sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from the manifest at path and the environment.
// A missing manifest is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("RATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

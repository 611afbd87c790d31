// Package config loads and validates the YAML configuration that drives the
// rank, backtest, and serve commands. Loading is fail-fast: a config that
// parses but does not validate never reaches the rest of the program.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MKY508/momentum-lens-sub000/internal/application"
	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/momentum"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
)

const dateLayout = "2006-01-02"

// Config is the root of the YAML file.
type Config struct {
	Universe  UniverseConfig  `yaml:"universe"`
	Data      DataConfig      `yaml:"data"`
	Momentum  momentum.Config `yaml:"momentum"`
	Stability StabilityConfig `yaml:"stability"`
	Selector  SelectorConfig  `yaml:"selector"`
	Regime    RegimeConfig    `yaml:"regime"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// UniverseConfig names the instruments under analysis.
type UniverseConfig struct {
	Symbols    []string `yaml:"symbols"`
	Benchmark  string   `yaml:"benchmark"`
	CoreSymbol string   `yaml:"core_symbol"`
	Start      string   `yaml:"start"`
	End        string   `yaml:"end"`
}

// DataConfig selects the bar source and cache.
type DataConfig struct {
	// Source is "csv" or "postgres".
	Source      string   `yaml:"source"`
	CSVDir      string   `yaml:"csv_dir"`
	PostgresDSN string   `yaml:"postgres_dsn"`
	CacheTTL    Duration `yaml:"cache_ttl"`
}

// Duration wraps time.Duration so YAML values like "15m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StabilityConfig configures rank-stability adjustment.
type StabilityConfig struct {
	Method string  `yaml:"method"`
	Window int     `yaml:"window"`
	TopN   int     `yaml:"top_n"`
	Weight float64 `yaml:"weight"`
}

// SelectorConfig configures the constrained selector.
type SelectorConfig struct {
	TopN                int     `yaml:"top_n"`
	MinPercentile       float64 `yaml:"min_percentile"`
	MaxCorrelation      float64 `yaml:"max_correlation"`
	HysteresisAdvantage float64 `yaml:"hysteresis_advantage"`
	CorrelationWindow   int     `yaml:"correlation_window"`
	PercentileLookback  int     `yaml:"percentile_lookback"`
}

// RegimeConfig configures the market state classifier.
type RegimeConfig struct {
	InitialState string                 `yaml:"initial_state"`
	Conditions   regime.ConditionConfig `yaml:"conditions"`
}

// BacktestConfig configures the simulation engine and cadence.
type BacktestConfig struct {
	Engine       backtest.Config `yaml:"engine"`
	FollowRegime bool            `yaml:"follow_regime"`
	Frequency    string          `yaml:"frequency"`
	OutputDir    string          `yaml:"output_dir"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, parses, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns a config with every knob at its documented default.
// Universe and data settings have no sensible defaults and stay empty.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:   "csv",
			CacheTTL: Duration(15 * time.Minute),
		},
		Momentum: momentum.Config{
			Windows: []int{60, 120},
			Weights: []float64{0.6, 0.4},
		},
		Stability: StabilityConfig{
			Method: "presence_ratio",
			Window: 20,
			TopN:   5,
			Weight: 0.3,
		},
		Selector: SelectorConfig{
			TopN:                2,
			MinPercentile:       0.80,
			MaxCorrelation:      0.80,
			HysteresisAdvantage: 0.02,
			CorrelationWindow:   60,
			PercentileLookback:  252,
		},
		Regime: RegimeConfig{
			InitialState: "neutral",
			Conditions:   regime.DefaultConditionConfig(),
		},
		Backtest: BacktestConfig{
			Engine:       backtest.DefaultConfig(),
			FollowRegime: true,
			Frequency:    "monthly",
			OutputDir:    "out/backtest",
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks every section, including the cross-section invariants the
// typed sub-configs cannot see on their own.
func (c *Config) Validate() error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("universe: no symbols configured")
	}
	if c.Universe.Benchmark == "" {
		return fmt.Errorf("universe: benchmark symbol required")
	}
	if _, _, err := c.dateRange(); err != nil {
		return err
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVDir == "" {
			return fmt.Errorf("data: csv_dir required for csv source")
		}
	case "postgres":
		if c.Data.PostgresDSN == "" {
			return fmt.Errorf("data: postgres_dsn required for postgres source")
		}
	default:
		return fmt.Errorf("data: unknown source %q (want csv or postgres)", c.Data.Source)
	}

	strategy, err := c.StrategyConfig()
	if err != nil {
		return err
	}
	if err := strategy.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Engine.Validate(); err != nil {
		return err
	}
	if _, err := market.ParseRebalanceFrequency(c.Backtest.Frequency); err != nil {
		return err
	}
	return nil
}

// StrategyConfig assembles the typed strategy configuration, translating
// the string-keyed YAML fields into their enum forms.
func (c *Config) StrategyConfig() (backtest.StrategyConfig, error) {
	method, err := rank.ParseStabilityMethod(c.Stability.Method)
	if err != nil {
		return backtest.StrategyConfig{}, err
	}
	state, err := regime.ParseState(c.Regime.InitialState)
	if err != nil {
		return backtest.StrategyConfig{}, err
	}
	return backtest.StrategyConfig{
		Momentum: c.Momentum,
		Stability: rank.StabilityParams{
			Method: method,
			Window: c.Stability.Window,
			TopN:   c.Stability.TopN,
		},
		StabilityWeight:    c.Stability.Weight,
		PercentileLookback: c.Selector.PercentileLookback,
		Selector: selector.Params{
			TopN:                c.Selector.TopN,
			MinPercentile:       c.Selector.MinPercentile,
			MaxCorrelation:      c.Selector.MaxCorrelation,
			HysteresisAdvantage: c.Selector.HysteresisAdvantage,
		},
		CorrelationWindow: c.Selector.CorrelationWindow,
		CoreSymbol:        c.Universe.CoreSymbol,
		InitialState:      state,
		Conditions:        c.Regime.Conditions,
	}, nil
}

// RunnerConfig assembles the full backtest run configuration.
func (c *Config) RunnerConfig() (backtest.RunnerConfig, error) {
	strategy, err := c.StrategyConfig()
	if err != nil {
		return backtest.RunnerConfig{}, err
	}
	freq, err := market.ParseRebalanceFrequency(c.Backtest.Frequency)
	if err != nil {
		return backtest.RunnerConfig{}, err
	}
	start, end, err := c.dateRange()
	if err != nil {
		return backtest.RunnerConfig{}, err
	}
	return backtest.RunnerConfig{
		Symbols:      c.Universe.Symbols,
		Benchmark:    c.Universe.Benchmark,
		Start:        start,
		End:          end,
		Engine:       c.Backtest.Engine,
		Strategy:     strategy,
		FollowRegime: c.Backtest.FollowRegime,
		Frequency:    freq,
		OutputDir:    c.Backtest.OutputDir,
	}, nil
}

// AnalysisConfig assembles the one-shot analysis configuration.
func (c *Config) AnalysisConfig(holdings []string) (application.AnalysisConfig, error) {
	strategy, err := c.StrategyConfig()
	if err != nil {
		return application.AnalysisConfig{}, err
	}
	start, end, err := c.dateRange()
	if err != nil {
		return application.AnalysisConfig{}, err
	}
	return application.AnalysisConfig{
		Symbols:   c.Universe.Symbols,
		Benchmark: c.Universe.Benchmark,
		Start:     start,
		End:       end,
		Strategy:  strategy,
		Holdings:  holdings,
	}, nil
}

func (c *Config) dateRange() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if c.Universe.Start != "" {
		start, err = time.Parse(dateLayout, c.Universe.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("universe: invalid start date %q: %w", c.Universe.Start, err)
		}
	}
	if c.Universe.End != "" {
		end, err = time.Parse(dateLayout, c.Universe.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("universe: invalid end date %q: %w", c.Universe.End, err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("universe: end date %s before start date %s", c.Universe.End, c.Universe.Start)
	}
	return start, end, nil
}

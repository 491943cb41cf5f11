// Package config loads and validates the fluxrank configuration.
//
// Configuration is resolved once at startup and treated as immutable: the
// budget table and fusion parameters are shared read-only by every run.
// Precedence: built-in defaults, then the config file, then env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	fluxerrors "github.com/fluxrank/fluxrank/internal/errors"
	"github.com/fluxrank/fluxrank/internal/retrieval"
)

// DefaultConfigFile is the per-project config file name.
const DefaultConfigFile = ".fluxrank.yaml"

// Environment variable overrides (highest precedence).
const (
	EnvRRFConstant    = "FLUXRANK_RRF_CONSTANT"
	EnvDiversityBoost = "FLUXRANK_DIVERSITY_BOOST"
	EnvRecencyBoost   = "FLUXRANK_RECENCY_BOOST"
	EnvLogLevel       = "FLUXRANK_LOG_LEVEL"
)

// Config is the complete fluxrank configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Fusion  FusionConfig `yaml:"fusion" json:"fusion"`
	Lanes   LanesConfig  `yaml:"lanes" json:"lanes"`

	// Budgets maps lane -> tier -> milliseconds. Missing entries for an
	// enabled lane fail validation at startup.
	Budgets map[string]map[string]int `yaml:"budgets" json:"budgets"`

	Log LogConfig `yaml:"log" json:"log"`
}

// FusionConfig tunes the fusion algorithm. Applied per process, never
// per-call.
type FusionConfig struct {
	// RRFConstant is the RRF smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// DiversityBoost is split across each domain's items (default: 0.1).
	DiversityBoost float64 `yaml:"diversity_boost" json:"diversity_boost"`

	// RecencyBoost is the maximum recency increment (default: 0.05).
	RecencyBoost float64 `yaml:"recency_boost" json:"recency_boost"`

	// LaneWeights optionally weight lanes in RRF; absent lanes weigh 1.0.
	LaneWeights map[string]float64 `yaml:"lane_weights,omitempty" json:"lane_weights,omitempty"`
}

// LanesConfig selects and wires the lane backends.
type LanesConfig struct {
	// Enabled lists the lanes to dispatch. Empty means all built-ins.
	Enabled []string `yaml:"enabled" json:"enabled"`

	// ResultLimit bounds each lane's contribution per run.
	ResultLimit int `yaml:"result_limit" json:"result_limit"`

	// GraphPath is the knowledge-graph SQLite path (":memory:" for tests).
	GraphPath string `yaml:"graph_path" json:"graph_path"`

	// NewsEndpoint and MarketsEndpoint are the feed base URLs.
	NewsEndpoint    string `yaml:"news_endpoint" json:"news_endpoint"`
	MarketsEndpoint string `yaml:"markets_endpoint" json:"markets_endpoint"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
}

// Default returns the built-in configuration: all lanes, spec budgets,
// standard fusion parameters.
func Default() *Config {
	budgets := make(map[string]map[string]int)
	for lane, row := range retrieval.DefaultBudgetTable() {
		budgets[string(lane)] = make(map[string]int, len(row))
		for tier, d := range row {
			budgets[string(lane)][string(tier)] = int(d.Milliseconds())
		}
	}
	return &Config{
		Version: 1,
		Fusion: FusionConfig{
			RRFConstant:    retrieval.DefaultRRFConstant,
			DiversityBoost: retrieval.DefaultDiversityBoost,
			RecencyBoost:   retrieval.DefaultRecencyBoost,
		},
		Lanes: LanesConfig{
			Enabled: []string{
				string(retrieval.LaneKeyword),
				string(retrieval.LaneVector),
				string(retrieval.LaneKnowledgeGraph),
				string(retrieval.LaneNews),
				string(retrieval.LaneMarkets),
			},
			ResultLimit: 20,
			GraphPath:   ":memory:",
		},
		Budgets: budgets,
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the config file at path, layered over defaults and under env
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults apply.
	case err != nil:
		return nil, fluxerrors.New(fluxerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("read config %s: %v", path, err), err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fluxerrors.ConfigError(
				fmt.Sprintf("parse config %s: %v", path, err), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvRRFConstant); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Fusion.RRFConstant = k
		}
	}
	if v := os.Getenv(EnvDiversityBoost); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fusion.DiversityBoost = b
		}
	}
	if v := os.Getenv(EnvRecencyBoost); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fusion.RecencyBoost = b
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration. A failure here is fatal at startup;
// request-time code assumes a valid config.
func (c *Config) Validate() error {
	if c.Fusion.RRFConstant <= 0 {
		return fluxerrors.ConfigError(
			fmt.Sprintf("fusion.rrf_constant must be positive, got %d", c.Fusion.RRFConstant), nil)
	}
	if c.Fusion.DiversityBoost <= 0 || c.Fusion.DiversityBoost > 1 {
		return fluxerrors.ConfigError(
			fmt.Sprintf("fusion.diversity_boost must be in (0, 1], got %g", c.Fusion.DiversityBoost), nil)
	}
	if c.Fusion.RecencyBoost <= 0 || c.Fusion.RecencyBoost > 1 {
		return fluxerrors.ConfigError(
			fmt.Sprintf("fusion.recency_boost must be in (0, 1], got %g", c.Fusion.RecencyBoost), nil)
	}
	for lane, w := range c.Fusion.LaneWeights {
		if w <= 0 {
			return fluxerrors.ConfigError(
				fmt.Sprintf("fusion.lane_weights[%s] must be positive, got %g", lane, w), nil)
		}
	}
	if c.Lanes.ResultLimit <= 0 {
		return fluxerrors.ConfigError(
			fmt.Sprintf("lanes.result_limit must be positive, got %d", c.Lanes.ResultLimit), nil)
	}

	if err := c.BudgetTable().Validate(c.EnabledLanes()); err != nil {
		return fluxerrors.Wrap(fluxerrors.ErrCodeBudgetMissing, err)
	}
	return nil
}

// EnabledLanes returns the configured lane IDs.
func (c *Config) EnabledLanes() []retrieval.LaneID {
	ids := make([]retrieval.LaneID, len(c.Lanes.Enabled))
	for i, lane := range c.Lanes.Enabled {
		ids[i] = retrieval.LaneID(lane)
	}
	return ids
}

// BudgetTable converts the millisecond budget map to the runtime table.
func (c *Config) BudgetTable() retrieval.BudgetTable {
	table := make(retrieval.BudgetTable, len(c.Budgets))
	for lane, row := range c.Budgets {
		table[retrieval.LaneID(lane)] = make(map[retrieval.Complexity]time.Duration, len(row))
		for tier, ms := range row {
			table[retrieval.LaneID(lane)][retrieval.Complexity(tier)] = time.Duration(ms) * time.Millisecond
		}
	}
	return table
}

// FusionParams converts the fusion section into runtime parameters.
func (c *Config) FusionParams() retrieval.Params {
	params := retrieval.Params{
		K:              c.Fusion.RRFConstant,
		DiversityBoost: c.Fusion.DiversityBoost,
		RecencyBoost:   c.Fusion.RecencyBoost,
	}
	if len(c.Fusion.LaneWeights) > 0 {
		params.LaneWeights = make(map[retrieval.LaneID]float64, len(c.Fusion.LaneWeights))
		for lane, w := range c.Fusion.LaneWeights {
			params.LaneWeights[retrieval.LaneID(lane)] = w
		}
	}
	return params
}

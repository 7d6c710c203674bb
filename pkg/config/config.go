package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-taxonomy.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Logging   LoggingConfig   `yaml:"logging"`
	Inference InferenceConfig `yaml:"inference"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // console or json
}

// InferenceConfig holds the detection thresholds. None of these values are
// defined by the export format; the defaults are documented starting points.
type InferenceConfig struct {
	// IdentifierSuffixesStr is a comma-separated list of foreign-key name markers.
	IdentifierSuffixesStr string `yaml:"identifier_suffixes" env:"TAXONOMY_IDENTIFIER_SUFFIXES" env-default:"_id,_code,_key,_uuid"`
	// FamilySuffixesStr is a comma-separated list of table variant suffixes.
	FamilySuffixesStr string `yaml:"family_suffixes" env:"TAXONOMY_FAMILY_SUFFIXES" env-default:"app,clinic,home,icu,plus,web"`

	// Parsed from the *Str fields (not from config file).
	IdentifierSuffixes []string `yaml:"-"`
	FamilySuffixes     []string `yaml:"-"`

	NamingIdentifierConfidence float64 `yaml:"naming_identifier_confidence" env:"TAXONOMY_NAMING_IDENTIFIER_CONFIDENCE" env-default:"0.9"`
	NamingStemConfidence       float64 `yaml:"naming_stem_confidence" env:"TAXONOMY_NAMING_STEM_CONFIDENCE" env-default:"0.75"`
	NamingFuzzyConfidence      float64 `yaml:"naming_fuzzy_confidence" env:"TAXONOMY_NAMING_FUZZY_CONFIDENCE" env-default:"0.6"`
	// FuzzyStemSimilarity is the minimum Levenshtein similarity for a near-miss stem. 0 disables it.
	FuzzyStemSimilarity float64 `yaml:"fuzzy_stem_similarity" env:"TAXONOMY_FUZZY_STEM_SIMILARITY" env-default:"0.85"`
	OneToOnePenalty     float64 `yaml:"one_to_one_penalty" env:"TAXONOMY_ONE_TO_ONE_PENALTY" env-default:"0.15"`

	OverlapMaxConfidence   float64 `yaml:"overlap_max_confidence" env:"TAXONOMY_OVERLAP_MAX_CONFIDENCE" env-default:"0.4"`
	OverlapMinSharedValues int     `yaml:"overlap_min_shared_values" env:"TAXONOMY_OVERLAP_MIN_SHARED_VALUES" env-default:"2"`
	// HighConfidenceThreshold marks naming links strong enough to suppress
	// reverse-direction value overlap between the same two columns.
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold" env:"TAXONOMY_HIGH_CONFIDENCE_THRESHOLD" env-default:"0.7"`

	MaxConcurrency int `yaml:"max_concurrency" env:"TAXONOMY_MAX_CONCURRENCY" env-default:"4"`
}

// DefaultInferenceConfig returns the documented defaults. They match the
// env-default tags above.
func DefaultInferenceConfig() InferenceConfig {
	cfg := InferenceConfig{
		IdentifierSuffixesStr:      "_id,_code,_key,_uuid",
		FamilySuffixesStr:          "app,clinic,home,icu,plus,web",
		NamingIdentifierConfidence: 0.9,
		NamingStemConfidence:       0.75,
		NamingFuzzyConfidence:      0.6,
		FuzzyStemSimilarity:        0.85,
		OneToOnePenalty:            0.15,
		OverlapMaxConfidence:       0.4,
		OverlapMinSharedValues:     2,
		HighConfidenceThreshold:    0.7,
		MaxConcurrency:             4,
	}
	cfg.parseComplexFields()
	return cfg
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Env:       "local",
		Version:   "dev",
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Inference: DefaultInferenceConfig(),
	}
}

// Load reads configuration from the YAML file at path with environment
// variable overrides. An empty path reads the environment only.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Inference.parseComplexFields()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return c.Inference.Validate()
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *InferenceConfig) parseComplexFields() {
	c.IdentifierSuffixes = parseList(c.IdentifierSuffixesStr, true)
	c.FamilySuffixes = parseList(c.FamilySuffixesStr, true)
}

// Validate ensures thresholds are in range and that value overlap can
// never outrank a naming match.
func (c *InferenceConfig) Validate() error {
	if len(c.IdentifierSuffixes) == 0 {
		c.parseComplexFields()
	}
	if len(c.IdentifierSuffixes) == 0 {
		return fmt.Errorf("identifier_suffixes must not be empty")
	}

	confidences := map[string]float64{
		"naming_identifier_confidence": c.NamingIdentifierConfidence,
		"naming_stem_confidence":       c.NamingStemConfidence,
		"naming_fuzzy_confidence":      c.NamingFuzzyConfidence,
		"overlap_max_confidence":       c.OverlapMaxConfidence,
		"high_confidence_threshold":    c.HighConfidenceThreshold,
	}
	for name, v := range confidences {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}

	if c.FuzzyStemSimilarity < 0 || c.FuzzyStemSimilarity > 1 {
		return fmt.Errorf("fuzzy_stem_similarity must be in [0,1], got %v", c.FuzzyStemSimilarity)
	}
	if c.OneToOnePenalty < 0 || c.OneToOnePenalty >= 1 {
		return fmt.Errorf("one_to_one_penalty must be in [0,1), got %v", c.OneToOnePenalty)
	}
	if c.OverlapMinSharedValues < 1 {
		return fmt.Errorf("overlap_min_shared_values must be at least 1, got %d", c.OverlapMinSharedValues)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}

	if floor := c.MinNamingConfidence(); c.OverlapMaxConfidence >= floor {
		return fmt.Errorf("overlap_max_confidence (%v) must be lower than the weakest naming confidence (%v)",
			c.OverlapMaxConfidence, floor)
	}

	return nil
}

// MinNamingConfidence is the lowest score a naming candidate can receive,
// after the one-to-one penalty.
func (c *InferenceConfig) MinNamingConfidence() float64 {
	lowest := math.Min(c.NamingIdentifierConfidence, c.NamingStemConfidence)
	if c.FuzzyStemSimilarity > 0 {
		lowest = math.Min(lowest, c.NamingFuzzyConfidence)
	}
	return lowest - c.OneToOnePenalty
}

// parseList splits a comma-separated list, trimming blanks. Lower-cased when lower is set.
func parseList(value string, lower bool) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lower {
			part = strings.ToLower(part)
		}
		out = append(out, part)
	}
	return out
}

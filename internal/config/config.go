package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/couchcryptid/disaster-archive-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers   []string
	KafkaSinkTopic string
	HTTPAddr       string
	LogLevel       string
	LogFormat      string

	ShutdownTimeout time.Duration

	// DatasetPath points at the raw dataset snapshot, CSV or XLSX.
	DatasetPath string

	// Optional YAML overrides for the built-in curation defaults.
	AliasDictionaryPath string
	ImputeStrategyPath  string

	Curation Curation
}

// Curation is the tunable policy surface of the curation stages, read from
// CURATION_-prefixed environment variables.
type Curation struct {
	YearMin            int     `envconfig:"YEAR_MIN" default:"1970" validate:"gt=0"`
	YearMax            int     `envconfig:"YEAR_MAX" default:"2021" validate:"gtefield=YearMin"`
	RecentWindowYears  int     `envconfig:"RECENT_WINDOW_YEARS" default:"20" validate:"gt=0"`
	SouthernHemisphere bool    `envconfig:"SOUTHERN_HEMISPHERE" default:"false"`
	GeoLookupVersion   string  `envconfig:"GEO_LOOKUP_VERSION" default:"2021" validate:"required"`
	WeightDeaths       float64 `envconfig:"SEVERITY_WEIGHT_DEATHS" default:"0.5" validate:"gte=0,lte=1"`
	WeightAffected     float64 `envconfig:"SEVERITY_WEIGHT_AFFECTED" default:"0.3" validate:"gte=0,lte=1"`
	WeightDamage       float64 `envconfig:"SEVERITY_WEIGHT_DAMAGE" default:"0.2" validate:"gte=0,lte=1"`
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:      sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "curated-disaster-events"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		DatasetPath:         sharedcfg.EnvOrDefault("DATASET_PATH", "data/disasters.csv"),
		AliasDictionaryPath: os.Getenv("ALIAS_DICTIONARY_PATH"),
		ImputeStrategyPath:  os.Getenv("IMPUTE_STRATEGY_PATH"),
	}

	if err := envconfig.Process("curation", &cfg.Curation); err != nil {
		return nil, fmt.Errorf("parse curation settings: %w", err)
	}
	if err := validator.New().Struct(cfg.Curation); err != nil {
		return nil, fmt.Errorf("invalid curation settings: %w", err)
	}
	if err := cfg.SeverityWeights().Validate(); err != nil {
		return nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DatasetPath == "" {
		return nil, errors.New("DATASET_PATH is required")
	}

	return cfg, nil
}

// TemporalPolicy builds the year-bounds policy for date reconstruction.
func (c *Config) TemporalPolicy() domain.TemporalPolicy {
	return domain.TemporalPolicy{YearMin: c.Curation.YearMin, YearMax: c.Curation.YearMax}
}

// SeverityWeights builds the severity weighting from the configured values.
func (c *Config) SeverityWeights() domain.SeverityWeights {
	return domain.SeverityWeights{
		Deaths:   c.Curation.WeightDeaths,
		Affected: c.Curation.WeightAffected,
		Damage:   c.Curation.WeightDamage,
	}
}

// DerivePolicy builds the derivation policy, anchoring the recency window to
// the configured upper year bound.
func (c *Config) DerivePolicy() domain.DerivePolicy {
	return domain.DerivePolicy{
		Weights:            c.SeverityWeights(),
		RecentWindow:       domain.RecentWindow(c.Curation.YearMax, c.Curation.RecentWindowYears),
		SouthernHemisphere: c.Curation.SouthernHemisphere,
	}
}

type aliasFile struct {
	Aliases []domain.AliasPair `yaml:"aliases"`
}

// LoadAliasDictionary reads the alias dictionary from the configured YAML
// file, or returns the built-in dictionary when no path is set.
func LoadAliasDictionary(path string) (*domain.AliasDictionary, error) {
	if path == "" {
		return domain.DefaultAliasDictionary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias dictionary: %w", err)
	}
	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse alias dictionary: %w", err)
	}
	return domain.NewAliasDictionary(file.Aliases)
}

// LoadStrategyMap reads imputation strategy overrides from the configured
// YAML file and overlays them onto the built-in defaults, or returns the
// defaults when no path is set. The merged map is validated before use.
func LoadStrategyMap(path string) (domain.StrategyMap, error) {
	strategies := domain.DefaultStrategyMap()
	if path == "" {
		return strategies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StrategyMap{}, fmt.Errorf("read strategy map: %w", err)
	}
	var overrides domain.StrategyMap
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return domain.StrategyMap{}, fmt.Errorf("parse strategy map: %w", err)
	}

	for col, s := range overrides.Numeric {
		strategies.Numeric[col] = s
	}
	for col, s := range overrides.Categorical {
		strategies.Categorical[col] = s
	}
	if err := strategies.Validate(); err != nil {
		return domain.StrategyMap{}, err
	}
	return strategies, nil
}

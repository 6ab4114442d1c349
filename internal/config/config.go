// Package config loads recset run configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// RECSET_ environment variables. A .env file in the working directory is
// read into the environment first. Command-line flags are applied by the
// CLI on top of the loaded result.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECSET_"

// PathEnvVar overrides the config file search.
const PathEnvVar = EnvPrefix + "CONFIG"

// DefaultPaths are searched in order when no file is given.
var DefaultPaths = []string{"recset.yaml", "recset.yml"}

// Source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the complete run configuration.
type Config struct {
	// Version names the published dataset (datasets.v<version>.*).
	Version string `koanf:"version" json:"version" validate:"required,dataset_version"`

	Source   SourceConfig   `koanf:"source" json:"source"`
	Store    StoreConfig    `koanf:"store" json:"store"`
	Pipeline PipelineConfig `koanf:"pipeline" json:"pipeline"`
	Output   OutputConfig   `koanf:"output" json:"output"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
	Logging  LoggingConfig  `koanf:"logging" json:"logging"`
}

type SourceConfig struct {
	Kind       string `koanf:"kind" json:"kind" validate:"oneof=file postgres"`
	Dir        string `koanf:"dir" json:"dir" validate:"required_if=Kind file"`
	DSN        string `koanf:"dsn" json:"dsn" validate:"required_if=Kind postgres"`
	WindowDays int    `koanf:"window_days" json:"window_days" validate:"min=1"`
}

type StoreConfig struct {
	Path string `koanf:"path" json:"path" validate:"required"`
}

type PipelineConfig struct {
	NegativeRatio   float64 `koanf:"negative_ratio" json:"negative_ratio" validate:"gt=0"`
	TestSize        float64 `koanf:"test_size" json:"test_size" validate:"gt=0,lt=1"`
	Seed            int64   `koanf:"seed" json:"seed"`
	RareThreshold   int     `koanf:"rare_threshold" json:"rare_threshold" validate:"min=1"`
	ClipVectorsOnly bool    `koanf:"clip_vectors_only" json:"clip_vectors_only"`
	Salt            string  `koanf:"salt" json:"salt"`

	// ReferenceTime pins "now" for derived features. Empty uses the wall
	// clock at run start.
	ReferenceTime string `koanf:"reference_time" json:"reference_time" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type OutputConfig struct {
	Dir          string `koanf:"dir" json:"dir" validate:"required"`
	Parquet      bool   `koanf:"parquet" json:"parquet"`
	Report       bool   `koanf:"report" json:"report"`
	SampleRows   int    `koanf:"sample_rows" json:"sample_rows" validate:"min=0"`
	ContractsDir string `koanf:"contracts_dir" json:"contracts_dir"`
}

type MetricsConfig struct {
	// File receives Prometheus text-format metrics after each run. Empty
	// disables the export.
	File string `koanf:"file" json:"file"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" json:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Source: SourceConfig{
			Kind:       SourceFile,
			Dir:        "data/raw",
			WindowDays: 90,
		},
		Store: StoreConfig{Path: "recset.db"},
		Pipeline: PipelineConfig{
			NegativeRatio: 2.0,
			TestSize:      0.2,
			Seed:          42,
			RareThreshold: 10,
		},
		Output: OutputConfig{
			Dir:        "data/datasets",
			Parquet:    true,
			Report:     true,
			SampleRows: 1000,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration. path names a YAML file; empty searches
// PathEnvVar and DefaultPaths, and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = findFile()
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil && explicit {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envAliases maps short variable names to config keys.
var envAliases = map[string]string{
	"dsn":       "source.dsn",
	"salt":      "pipeline.salt",
	"seed":      "pipeline.seed",
	"db":        "store.path",
	"log_level": "logging.level",
}

// envKey maps RECSET_SECTION__FIELD to section.field, plus the aliases.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	return strings.ReplaceAll(key, "__", ".")
}

var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("dataset_version", func(fl validator.FieldLevel) bool {
		return versionPattern.MatchString(fl.Field().String())
	})
	return v
}()

// Validate checks every field constraint and reports all violations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Redacted returns a copy with credentials and the hashing salt removed,
// safe to store with a run.
func (c *Config) Redacted() *Config {
	out := *c
	out.Source.DSN = ""
	out.Pipeline.Salt = ""
	return &out
}

// Now returns the pinned reference time, or fallback when none is set.
func (c *Config) Now(fallback time.Time) time.Time {
	if c.Pipeline.ReferenceTime == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, c.Pipeline.ReferenceTime)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// Package config loads engine and server settings from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"finsight/pkg/core/alias"
	"finsight/pkg/core/clean"
	"finsight/pkg/core/pipeline"
	"finsight/pkg/core/quality"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Engine   EngineConfig  `yaml:"engine"`
	Quality  QualityConfig `yaml:"quality"`
	LogLevel string        `yaml:"log_level" validate:"oneof=trace debug info warn error"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type EngineConfig struct {
	DefaultYears    int                   `yaml:"default_years" validate:"min=1,max=20"`
	CacheSize       int                   `yaml:"cache_size" validate:"min=0,max=100000"`
	ImplicitScaling ImplicitScalingConfig `yaml:"implicit_scaling"`
	MagnitudeLimit  float64               `yaml:"magnitude_limit" validate:"gt=0"`
}

// ImplicitScalingConfig enables scaling of small unitless values. An empty
// category list leaves it off.
type ImplicitScalingConfig struct {
	Categories []string `yaml:"categories" validate:"dive,oneof=monetary signed_monetary per_share"`
	Fields     []string `yaml:"fields"`
	Threshold  float64  `yaml:"threshold" validate:"gt=0"`
	Multiplier float64  `yaml:"multiplier" validate:"gt=0"`
}

type QualityConfig struct {
	BalanceTolerance float64 `yaml:"balance_tolerance" validate:"gt=0,lt=1"`
}

// Default returns the documented defaults.
func Default() *Config {
	co := clean.DefaultOptions()
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Engine: EngineConfig{
			DefaultYears: pipeline.DefaultYears,
			CacheSize:    100,
			ImplicitScaling: ImplicitScalingConfig{
				Categories: []string{},
				Fields:     []string{},
				Threshold:  co.ImplicitThreshold,
				Multiplier: co.ImplicitMultiplier,
			},
			MagnitudeLimit: co.MagnitudeLimit,
		},
		Quality:  QualityConfig{BalanceTolerance: quality.DefaultOptions().BalanceTolerance},
		LogLevel: "info",
	}
}

// Load returns the defaults overlaid by the YAML file at path (skipped when
// path is empty or missing), then by FINSIGHT_* environment variables.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("FINSIGHT_ADDR", c.Server.Addr)
	c.Engine.DefaultYears = getEnvAsInt("FINSIGHT_DEFAULT_YEARS", c.Engine.DefaultYears)
	c.Engine.CacheSize = getEnvAsInt("FINSIGHT_CACHE_SIZE", c.Engine.CacheSize)
	c.Engine.MagnitudeLimit = getEnvAsFloat("FINSIGHT_MAGNITUDE_LIMIT", c.Engine.MagnitudeLimit)
	c.Quality.BalanceTolerance = getEnvAsFloat("FINSIGHT_BALANCE_TOLERANCE", c.Quality.BalanceTolerance)
	c.LogLevel = getEnv("FINSIGHT_LOG_LEVEL", c.LogLevel)

	if getEnvAsBool("FINSIGHT_IMPLICIT_SCALING", false) && len(c.Engine.ImplicitScaling.Categories) == 0 {
		c.Engine.ImplicitScaling.Categories = []string{string(alias.KindMonetary), string(alias.KindSignedMonetary)}
	}
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// EngineOptions converts the configuration into pipeline options.
func (c *Config) EngineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.DefaultYears = c.Engine.DefaultYears
	opts.CacheSize = c.Engine.CacheSize

	is := c.Engine.ImplicitScaling
	kinds := make([]alias.Kind, 0, len(is.Categories))
	for _, k := range is.Categories {
		kinds = append(kinds, alias.Kind(k))
	}
	opts.Cleaner = clean.Options{
		ImplicitKinds:      kinds,
		ImplicitFields:     is.Fields,
		ImplicitThreshold:  is.Threshold,
		ImplicitMultiplier: is.Multiplier,
		MagnitudeLimit:     c.Engine.MagnitudeLimit,
	}
	opts.Quality = quality.Options{BalanceTolerance: c.Quality.BalanceTolerance}
	opts.Now = time.Now
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return value
	}
	return defaultValue
}

// Package config loads hgradproj settings from YAML with HGRAD_*
// environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/notargets/HGradProjection/element"
	"github.com/notargets/HGradProjection/field"
	"github.com/notargets/HGradProjection/partitions"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a projection run.
type Config struct {
	Cell         string `yaml:"cell" env:"HGRAD_CELL"`
	Order        int    `yaml:"order" env:"HGRAD_ORDER"`
	TargetDegree int    `yaml:"target_degree" env:"HGRAD_TARGET_DEGREE"` // 0 means 2·order
	Cells        int    `yaml:"cells" env:"HGRAD_CELLS"`
	Seed         int64  `yaml:"seed" env:"HGRAD_SEED"`
	Mesh         string `yaml:"mesh" env:"HGRAD_MESH"`

	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
	Target    TargetConfig    `yaml:"target"`
}

// ExecutionConfig sizes the worker pool.
type ExecutionConfig struct {
	Workers       int    `yaml:"workers" env:"HGRAD_WORKERS"`
	PartitionSize int    `yaml:"partition_size" env:"HGRAD_PARTITION_SIZE"`
	Strategy      string `yaml:"strategy" env:"HGRAD_STRATEGY"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" env:"HGRAD_LOG_LEVEL"`
	Development bool   `yaml:"development" env:"HGRAD_LOG_DEVELOPMENT"`
}

// TargetConfig is the polynomial target. With no terms a default polynomial
// of the basis order is used.
type TargetConfig struct {
	Terms []field.Term `yaml:"terms"`
}

func Default() *Config {
	return &Config{
		Cell:  "tet",
		Order: 3,
		Cells: 64,
		Seed:  1,
		Execution: ExecutionConfig{
			Strategy: "block",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := element.ParseGeometry(c.Cell); err != nil {
		return err
	}
	if c.Order < 1 {
		return fmt.Errorf("order must be >= 1, got %d", c.Order)
	}
	if c.TargetDegree < 0 {
		return fmt.Errorf("target degree must be >= 0, got %d", c.TargetDegree)
	}
	if c.Mesh == "" && c.Cells < 1 {
		return fmt.Errorf("cells must be >= 1, got %d", c.Cells)
	}
	if c.Execution.Workers < 0 || c.Execution.PartitionSize < 0 {
		return fmt.Errorf("workers (%d) and partition size (%d) must not be negative",
			c.Execution.Workers, c.Execution.PartitionSize)
	}
	if _, err := c.PartitionStrategy(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	return nil
}

func (c *Config) Geometry() (element.ElementGeometry, error) {
	return element.ParseGeometry(c.Cell)
}

func (c *Config) PartitionStrategy() (partitions.PartitionStrategy, error) {
	return partitions.ParseStrategy(c.Execution.Strategy)
}

// TargetCubatureDegree is the exactness of the target-against-basis rules.
func (c *Config) TargetCubatureDegree() int {
	if c.TargetDegree > 0 {
		return c.TargetDegree
	}
	return 2 * c.Order
}

// Polynomial returns the configured target in dim variables.
func (c *Config) Polynomial(dim int) (*field.Polynomial, error) {
	terms := c.Target.Terms
	if len(terms) == 0 {
		terms = defaultTerms(dim, c.Order)
	}
	return field.NewPolynomial(dim, terms...)
}

// defaultTerms is 1 + Σ x_d + x_0 · x_{dim-1}^(order-1), of degree order.
func defaultTerms(dim, order int) []field.Term {
	terms := []field.Term{{Coeff: 1}}
	for d := 0; d < dim; d++ {
		var e [3]int
		e[d] = 1
		terms = append(terms, field.Term{Coeff: 1, Exp: e})
	}
	if order > 1 {
		var e [3]int
		e[0] = 1
		e[dim-1] += order - 1
		terms = append(terms, field.Term{Coeff: -0.5, Exp: e})
	}
	return terms
}

// NewLogger builds a zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

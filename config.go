package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the file and flag configuration of a forecast run. Its default
// tags carry the calibrated simulation defaults.
type Config struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output" default:"forecast.csv"`
	Model  struct {
		Name     string `yaml:"name" default:"egarch" validate:"oneof=egarch msm"`
		MSMDim   int    `yaml:"msm_dim" default:"3" validate:"min=1,max=10"`
		Schedule string `yaml:"schedule" default:"forecast" validate:"oneof=forecast tail history"`
		Seed     uint64 `yaml:"seed" default:"1"`
	} `yaml:"model"`
	Simulation struct {
		// 0 asks on stdin
		Simulations        int     `yaml:"simulations" validate:"gte=0"`
		HorizonDays        int     `yaml:"horizon_days" default:"100" validate:"gt=0"`
		DegreesOfFreedom   float64 `yaml:"degrees_of_freedom" default:"4" validate:"gt=2"`
		VolatilityScale    float64 `yaml:"volatility_scale" default:"0.75" validate:"gte=0"`
		CrisisMultiplier   float64 `yaml:"crisis_multiplier" default:"3" validate:"gte=0"`
		CrisisProbability  float64 `yaml:"crisis_probability" default:"0.05" validate:"gte=0,lte=1"`
		LowerBoundFraction float64 `yaml:"lower_bound_fraction" default:"0.3" validate:"gte=0"`
		UpperBoundFraction float64 `yaml:"upper_bound_fraction" default:"3" validate:"gtefield=LowerBoundFraction"`
		Workers            int     `yaml:"workers" validate:"gte=0"`
		// 0 seeds from the clock
		Seed uint64 `yaml:"seed"`
	} `yaml:"simulation"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty" default:"true"`
	} `yaml:"log"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// LoadConfig reads a YAML configuration file over the defaults. An empty
// path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
}

// Parameters derives the simulator parameters for a run starting at start.
func (c *Config) Parameters(start float64) Parameters {
	s := c.Simulation
	return Parameters{
		DegreesOfFreedom:  s.DegreesOfFreedom,
		VolatilityScale:   s.VolatilityScale,
		CrisisMultiplier:  s.CrisisMultiplier,
		CrisisProbability: s.CrisisProbability,
		LowerBound:        start * s.LowerBoundFraction,
		UpperBound:        start * s.UpperBoundFraction,
		Horizon:           s.HorizonDays,
		Simulations:       s.Simulations,
		Workers:           s.Workers,
		Seed:              s.Seed,
	}
}

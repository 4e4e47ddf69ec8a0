package config

import (
	"errors"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type SolverConfig struct {
	// Enabled runs the built-in solver worker every round.
	Enabled bool
	Name    string
	// Tolerance is the bisection stop width in base units.
	Tolerance     uint64
	MaxIterations int
	// Timeout bounds one solver run.
	Timeout time.Duration
	// Sequential also runs a candidate that routes every intent on its own
	// and keeps whichever solution scores higher.
	Sequential bool
}

func (c *SolverConfig) Key() string {
	return SOLVER_CONFIG_KEY
}

func (c *SolverConfig) Load() error {
	var err error
	c.Enabled = common.GetEnvOrDefault("SOLVER_ENABLED", "true") == "true"
	c.Name = common.GetEnvOrDefault("SOLVER_NAME", "omnipool-solver")
	if c.Tolerance, err = envUint64("SOLVER_TOLERANCE", 1); err != nil {
		return err
	}
	c.MaxIterations = common.GetEnvOrDefaultInt("SOLVER_MAX_ITERATIONS", 128)
	if c.Timeout, err = envDuration("SOLVER_TIMEOUT", 2*time.Second); err != nil {
		return err
	}
	c.Sequential = common.GetEnvOrDefault("SOLVER_SEQUENTIAL_CANDIDATE", "true") == "true"
	return c.Validate()
}

func (c *SolverConfig) Validate() error {
	if c.Tolerance == 0 {
		return errors.New("solver tolerance must be positive")
	}
	if c.MaxIterations <= 0 {
		return errors.New("solver max iterations must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("solver timeout must be positive")
	}
	return nil
}

package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables referenced as ${VAR} are
// substituted before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse config as json")
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a small scenario that runs in seconds: a 10 x 5 field on a padded 27 x 17
// lattice, the six CAR(1)/CAR(2) hypotheses of the Efficient Bayesian spatial prediction setup
// and two obstacles.
func Default() *Config {
	borderPenalty := -2.
	return &Config{
		Field: FieldConfig{
			XMin: 0, XMax: 10, YMin: 0, YMax: 5,
			Cols: 21, Rows: 11,
			PadCols: 3, PadRows: 3,
		},
		Hypotheses: []HypothesisConfig{
			{Kappa: 4, Alpha: 0.0025, Order: "car2"},
			{Kappa: 1, Alpha: 0.01, Order: "car2"},
			{Kappa: 0.25, Alpha: 0.04, Order: "car2"},
			{Kappa: 1, Alpha: 0.1, Order: "car1"},
			{Kappa: 1, Alpha: 0.001, Order: "car1"},
			{Kappa: 1, Alpha: 0.00001, Order: "car1"},
		},
		NoiseVariance: 0.04,
		Regression:    RegressionConfig{P: 1, PriorPrecision: 1e-6},
		Planner: PlannerConfig{
			MaxIter:         30,
			MaxDist:         25,
			MinDist:         3,
			MaxCurvature:    1,
			RadiusMax:       5,
			PointSeparation: 0.1,
			BorderPenalty:   &borderPenalty,
		},
		Obstacles: []ObstacleConfig{
			{X: 3, Y: 2.5, Side: 1},
			{X: 7, Y: 1, Side: 1},
		},
		Start: PoseConfig{X: 1, Y: 1, Theta: 0},
		Simulation: SimulationConfig{
			Truth:      HypothesisConfig{Kappa: 1, Alpha: 0.01, Order: "car2"},
			TruthMean:  10,
			Seed:       1,
			SenseEvery: 5,
			Steps:      5,
		},
	}
}

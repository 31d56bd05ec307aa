package simulation

import (
	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/gmrfnav/config"
	"go.viam.com/gmrfnav/gmrf"
)

// NewDriverFromConfig builds the lattice, estimator, ground truth and planner options described
// by cfg and returns a driver over them. A nil clk uses the wall clock.
func NewDriverFromConfig(
	cfg *config.Config,
	clk clock.Clock,
	logger golog.Logger,
	observers ...Observer,
) (*Driver, error) {
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	l, err := cfg.Field.Lattice()
	if err != nil {
		return nil, errors.Wrap(err, "building lattice")
	}
	params, err := cfg.HypothesisParams()
	if err != nil {
		return nil, err
	}
	estimator, err := gmrf.NewEstimator(l, params, cfg.Regression.Design(l.Size()), logger)
	if err != nil {
		return nil, err
	}

	truthParams, err := cfg.Simulation.Truth.Params()
	if err != nil {
		return nil, err
	}
	truth, _, err := NewGMRFTruth(l, truthParams, cfg.Simulation.TruthMean, cfg.Simulation.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "sampling ground truth")
	}

	planOpts, err := cfg.PlannerOptions()
	if err != nil {
		return nil, err
	}
	return NewDriver(DriverConfig{
		Estimator:     estimator,
		Truth:         truth,
		NoiseVariance: cfg.NoiseVariance,
		SenseEvery:    cfg.Simulation.SenseEvery,
		Start:         cfg.Start.Pose(),
		Planner:       planOpts,
		Seed:          cfg.Simulation.Seed,
		Clock:         clk,
		Observers:     observers,
	}, logger)
}

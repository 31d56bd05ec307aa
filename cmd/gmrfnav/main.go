// Package main runs informative-path-planning scenarios from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/gmrfnav/config"
	"go.viam.com/gmrfnav/simulation"
	"go.viam.com/gmrfnav/visualize"
)

const (
	flagConfig  = "config"
	flagSteps   = "steps"
	flagPlotDir = "plot-dir"
	flagDebug   = "debug"
	flagQuiet   = "quiet"
	flagSeed    = "seed"
)

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load scenario from `FILE`; the built-in scenario is used when unset",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.BoolFlag{
			Name:    flagQuiet,
			Aliases: []string{"q"},
			Usage:   "disable logging; step summaries are still printed",
		},
	}

	app := &cli.App{
		Name:  "gmrfnav",
		Usage: "plan sensing paths over a Gaussian Markov random field",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "simulate sensing, estimation and planning",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  flagSteps,
						Usage: "number of steps to run; overrides the scenario",
					},
					&cli.StringFlag{
						Name:  flagPlotDir,
						Usage: "write a variance heat map per step into `DIR`",
					},
				}, commonFlags...),
				Action: runAction,
			},
			{
				Name:  "sample",
				Usage: "draw the scenario's ground truth and print a summary",
				Flags: append([]cli.Flag{
					&cli.Uint64Flag{
						Name:  flagSeed,
						Usage: "random seed; overrides the scenario",
					},
				}, commonFlags...),
				Action: sampleAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) golog.Logger {
	switch {
	case c.Bool(flagQuiet):
		return zap.NewNop().Sugar()
	case c.Bool(flagDebug):
		return golog.NewDevelopmentLogger("gmrfnav")
	default:
		return golog.NewLogger("gmrfnav")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path)
}

func runAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	steps := cfg.Simulation.Steps
	if c.IsSet(flagSteps) {
		steps = c.Int(flagSteps)
	}
	if steps < 0 {
		return errors.Errorf("--%s cannot be negative", flagSteps)
	}

	observers := []simulation.Observer{newSummaryObserver(c.App.Writer)}
	if dir := c.String(flagPlotDir); dir != "" {
		heatmaps, err := visualize.NewHeatmapObserver(dir, logger)
		if err != nil {
			return err
		}
		observers = append(observers, heatmaps)
	}

	driver, err := simulation.NewDriverFromConfig(cfg, clock.New(), logger, observers...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()
	logger.Infow("starting run", "run_id", driver.RunID(), "steps", steps, "config", cfg.ConfigFilePath)
	if _, err := driver.Run(ctx, steps); err != nil {
		return errors.Wrap(err, "run failed")
	}
	logger.Infow("run finished", "run_id", driver.RunID(), "pose", driver.Pose().String())
	return nil
}

func sampleAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet(flagSeed) {
		cfg.Simulation.Seed = c.Uint64(flagSeed)
	}
	l, err := cfg.Field.Lattice()
	if err != nil {
		return err
	}
	params, err := cfg.Simulation.Truth.Params()
	if err != nil {
		return err
	}
	_, values, err := simulation.NewGMRFTruth(l, params, cfg.Simulation.TruthMean, cfg.Simulation.Seed)
	if err != nil {
		return err
	}

	mean, std := stat.MeanStdDev(values, nil)
	fmt.Fprintf(c.App.Writer, "lattice %s\n", l)
	fmt.Fprintf(c.App.Writer, "truth %s kappa=%g alpha=%g seed=%d\n", params.Order, params.Kappa, params.Alpha, cfg.Simulation.Seed)
	fmt.Fprintf(c.App.Writer, "mean %.4f std %.4f min %.4f max %.4f\n", mean, std, floats.Min(values), floats.Max(values))
	return nil
}

// summaryObserver prints one line per step.
type summaryObserver struct {
	w io.Writer
}

func newSummaryObserver(w io.Writer) *summaryObserver {
	if w == nil {
		w = os.Stdout
	}
	return &summaryObserver{w: w}
}

func (s *summaryObserver) Observe(ctx context.Context, result *simulation.StepResult) error {
	var maxVar float64
	if result.Prediction != nil {
		maxVar = floats.Max(result.Prediction.FieldVariance())
	}
	if result.NoPath {
		_, err := fmt.Fprintf(s.w, "step %3d  obs %4d  max var %.4f  no path, holding at %s\n",
			result.Step, result.Observations, maxVar, result.Pose)
		return err
	}
	_, err := fmt.Fprintf(s.w, "step %3d  obs %4d  max var %.4f  path len %.2f reward %.3f  now at %s\n",
		result.Step, result.Observations, maxVar, result.Plan.Length, result.Plan.Reward, result.Pose)
	return err
}


/*
Monte Carlo price forecaster with crisis regimes.
A conditional volatility model (EGARCH or MSM) is fitted to historical returns and its volatility schedule drives
Student-t price paths with randomly amplified crisis days. The per-day mean of the paths is the forecast.
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type cliFlags struct {
	config, input, output, model, schedule, logLevel string
	simulations, window, msmDim, workers             int
	seed                                             uint64
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("volsim failed")
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var f cliFlags

	root := &cobra.Command{
		Use:           "volsim",
		Short:         "Forecast a price series with volatility-driven Monte Carlo paths",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &f)
			if err != nil {
				return err
			}
			return runForecast(cmd.Context(), cfg, in, out)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&f.input, "input", "i", "", "CSV file with Date, Close and Adj Close columns")
	pf.StringVarP(&f.model, "model", "m", "egarch", "Volatility model: egarch or msm")
	pf.IntVarP(&f.msmDim, "dim", "k", 3, "MSM model dimension, +ve integer, caution: k > 10 can take minutes to run")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	fl := root.Flags()
	fl.StringVarP(&f.output, "output", "o", "forecast.csv", "Name of output file")
	fl.IntVarP(&f.simulations, "sims", "n", 0, "Number of simulated paths, asked interactively when 0")
	fl.IntVarP(&f.window, "window", "w", 100, "Forecast horizon in days")
	fl.StringVar(&f.schedule, "schedule", ScheduleForecast, "Volatility schedule: forecast, tail or history")
	fl.IntVar(&f.workers, "workers", 0, "Path generation workers, 0 uses every CPU")
	fl.Uint64Var(&f.seed, "seed", 0, "Random seed, 0 seeds from the clock")

	root.AddCommand(newFitCmd(&f, out))
	return root
}

func newFitCmd(f *cliFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Fit the volatility model and print its parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			hist, err := loadHistory(cfg.Input)
			if err != nil {
				return err
			}
			_, _, err = fitModel(cfg, hist, out)
			return err
		},
	}
}

// resolveConfig layers explicitly set flags over the config file.
func resolveConfig(cmd *cobra.Command, f *cliFlags) (*Config, error) {
	cfg, err := LoadConfig(f.config)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input = f.input
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("model") {
		cfg.Model.Name = f.model
	}
	if changed("dim") {
		cfg.Model.MSMDim = f.msmDim
	}
	if changed("schedule") {
		cfg.Model.Schedule = f.schedule
	}
	if changed("sims") {
		cfg.Simulation.Simulations = f.simulations
	}
	if changed("window") {
		cfg.Simulation.HorizonDays = f.window
	}
	if changed("workers") {
		cfg.Simulation.Workers = f.workers
	}
	if changed("seed") {
		cfg.Simulation.Seed = f.seed
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Input == "" {
		return nil, fmt.Errorf("%w: no input file, use -i or the config input field", ErrInvalidConfiguration)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func loadHistory(filename string) (*PriceHistory, error) {
	hist, err := LoadPrices(filename)
	if err != nil {
		return nil, err
	}
	first, last := hist.Dates[0], hist.Dates[hist.Len()-1]
	log.Info().Int("records", hist.Len()).
		Str("from", first.Format(dateLayout)).Str("to", last.Format(dateLayout)).
		Msg("dataset loaded")
	return hist, nil
}

// fitModel fits the configured volatility model and prints its parameters.
func fitModel(cfg *Config, hist *PriceHistory, out io.Writer) (*VolatilityFit, float64, error) {
	returns := hist.Returns()
	mu, err := MeanReturn(returns)
	if err != nil {
		return nil, 0, err
	}

	model, err := newVolatilityModel(cfg.Model.Name, cfg.Model.MSMDim, cfg.Model.Seed)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	fit, err := model.Fit(returns)
	if err != nil {
		return nil, 0, fmt.Errorf("fit %s: %w", model.Name(), err)
	}
	log.Info().Str("model", fit.Model).Float64("loglik", fit.LogLik).Int("evals", fit.Evals).
		Dur("took", time.Since(start)).Msg("model fitted")

	printFit(out, fit, mu)
	return fit, mu, nil
}

func runForecast(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	hist, err := loadHistory(cfg.Input)
	if err != nil {
		return err
	}
	if cfg.Simulation.Simulations == 0 {
		n, err := promptSimulations(in, out)
		if err != nil {
			return err
		}
		cfg.Simulation.Simulations = n
	}

	fit, mu, err := fitModel(cfg, hist, out)
	if err != nil {
		return err
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = uint64(time.Now().UnixNano())
	}

	schedule, err := BuildSchedule(fit, cfg.Simulation.HorizonDays, cfg.Model.Schedule)
	if err != nil {
		return err
	}
	log.Debug().Floats64("head", schedule[:min(5, len(schedule))]).Msg("volatility schedule")

	lastDate, start := hist.Last()
	sim, err := NewSimulator(cfg.Parameters(start))
	if err != nil {
		return err
	}
	p := sim.Params()
	log.Info().Int("paths", p.Simulations).Int("horizon", p.Horizon).Int("workers", p.Workers).
		Uint64("seed", p.Seed).Msg("running simulations")

	began := time.Now()
	e, err := sim.Run(ctx, start, schedule, mu)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	r, err := NewReport(fit, mu, lastDate, e)
	if err != nil {
		return err
	}
	log.Info().Int("crisis_days", r.CrisisDays).Dur("took", time.Since(began)).Msg("simulations complete")

	printForecast(out, r)
	if err := writeResults(r, cfg.Output); err != nil {
		return err
	}
	log.Info().Str("file", cfg.Output).Msg("forecast written")
	return nil
}

// promptSimulations asks for the number of paths on the terminal.
func promptSimulations(in io.Reader, out io.Writer) (int, error) {
	fmt.Fprint(out, "How many simulations do you want to run?: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("%w: no number of simulations given", ErrInvalidInput)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: number of simulations must be a positive integer, got %q", ErrInvalidInput, strings.TrimSpace(line))
	}
	return n, nil
}

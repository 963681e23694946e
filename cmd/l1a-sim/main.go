// Command l1a-sim writes a synthetic L1A file: bursts along an SGP4 or
// circular orbit with point-reflector echoes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/internal/logging"
	"github.com/signalsfoundry/delay-doppler-processor/internal/product"
	"github.com/signalsfoundry/delay-doppler-processor/internal/sim"
)

type options struct {
	cstPath  string
	chdPath  string
	tlePath  string
	altitude float64
	start    string
	bursts   int
	spacing  float64
	gaps     []int
	gapSecs  float64
	cal1     bool
	rmcEvery int
	seed     uint64
	out      string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := pflag.NewFlagSet("l1a-sim", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.cstPath, "cst", "", "constants file; empty uses built-in defaults")
	fs.StringVar(&opts.chdPath, "chd", "", "instrument characterization file")
	fs.StringVar(&opts.tlePath, "tle", "", "two-line element file; without it a circular polar orbit is used")
	fs.Float64Var(&opts.altitude, "altitude", 800e3, "circular orbit altitude in metres")
	fs.StringVar(&opts.start, "start", "2026-01-01T00:00:00Z", "first burst time (RFC 3339)")
	fs.IntVar(&opts.bursts, "bursts", 2000, "number of bursts")
	fs.Float64Var(&opts.spacing, "scatterer-spacing", 250, "along-track reflector spacing in metres")
	fs.IntSliceVar(&opts.gaps, "gap-before", nil, "burst indices preceded by an acquisition gap")
	fs.Float64Var(&opts.gapSecs, "gap-seconds", 5, "duration of each acquisition gap")
	fs.BoolVar(&opts.cal1, "cal1-drift", true, "apply a per-pulse CAL1 drift")
	fs.IntVar(&opts.rmcEvery, "rmc-every", 0, "flag every n-th burst as RMC (0 disables)")
	fs.Uint64Var(&opts.seed, "seed", 1, "random seed")
	fs.StringVarP(&opts.out, "out", "o", "SIM_L1A.nc", "output L1A file")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.bursts <= 0 {
		return options{}, errors.New("--bursts must be positive")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, log := logging.WithRunLogger(context.Background(), logging.NewFromEnv())
	if err := run(ctx, opts, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log logging.Logger) error {
	params, err := config.Load(opts.cstPath, opts.chdPath, "")
	if err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, opts.start)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}

	orbit, err := buildOrbit(opts, start)
	if err != nil {
		return err
	}
	bri := time.Duration(params.CHD.BRI * float64(time.Second))
	gapTotal := time.Duration(float64(len(opts.gaps)) * opts.gapSecs * float64(time.Second))
	span := time.Duration(opts.bursts)*bri + gapTotal
	// reflectors must cover the beam footprint beyond both ends of the track
	margin := 30 * time.Second
	scene, err := sim.TrackScene(orbit, start.Add(-margin), span+2*margin, opts.spacing, opts.seed)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}

	gen := sim.Generator{
		Params:      params,
		Orbit:       orbit,
		Echo:        &sim.ScattererEcho{Scatterers: scene, MaxRange: 1.1 * opts.altitude},
		Start:       start,
		Gaps:        opts.gaps,
		GapDuration: time.Duration(opts.gapSecs * float64(time.Second)),
		Cal1Drift:   opts.cal1,
		RMCEvery:    opts.rmcEvery,
		Seed:        opts.seed,
	}
	log.Info(ctx, "generating bursts",
		logging.Int("bursts", opts.bursts),
		logging.Int("scatterers", len(scene)),
		logging.Bool("sgp4", opts.tlePath != ""))
	bursts, err := gen.Generate(opts.bursts)
	if err != nil {
		return err
	}
	if err := product.WriteL1A(opts.out, params.CHD.Mission, bursts); err != nil {
		return err
	}
	log.Info(ctx, "wrote l1a", logging.String("path", opts.out))
	return nil
}

func buildOrbit(opts options, start time.Time) (sim.Orbit, error) {
	if opts.tlePath == "" {
		return sim.CircularOrbit{
			Altitude:    opts.altitude,
			Inclination: 92,
			Epoch:       start,
			Rotating:    true,
		}, nil
	}
	data, err := os.ReadFile(opts.tlePath)
	if err != nil {
		return nil, fmt.Errorf("read tle: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimRight(l, "\r ")
		if strings.HasPrefix(l, "1 ") || strings.HasPrefix(l, "2 ") {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%s: no two-line element set", opts.tlePath)
	}
	return sim.NewSGP4Orbit(lines[0], lines[1])
}

// Command ddp processes L1A SAR altimeter files into L1B and L1B-S products.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/signalsfoundry/delay-doppler-processor/core"
	"github.com/signalsfoundry/delay-doppler-processor/internal/config"
	"github.com/signalsfoundry/delay-doppler-processor/internal/l1b"
	"github.com/signalsfoundry/delay-doppler-processor/internal/logging"
	"github.com/signalsfoundry/delay-doppler-processor/internal/observability"
	"github.com/signalsfoundry/delay-doppler-processor/internal/product"
)

// version is stamped on every product; overridden at link time.
var version = "dev"

var _ l1b.MetricsRecorder = (*observability.ProcessorCollector)(nil)

type options struct {
	cstPath     string
	chdPath     string
	cnfPath     string
	outDir      string
	metricsAddr string
	// l1b and l1bs are nil unless set on the command line, in which case
	// they override the run configuration.
	l1b    *bool
	l1bs   *bool
	inputs []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := pflag.NewFlagSet("ddp", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.cstPath, "cst", "", "constants file (YAML or JSON); empty uses built-in defaults")
	fs.StringVar(&opts.chdPath, "chd", "", "instrument characterization file")
	fs.StringVar(&opts.cnfPath, "cnf", "", "run configuration file")
	fs.StringVar(&opts.outDir, "out-dir", ".", "directory receiving the products")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	writeL1B := fs.Bool("l1b", true, "write the L1B product")
	writeL1BS := fs.Bool("l1bs", false, "write the L1B-S stack product")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: ddp [flags] L1A_FILE...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.Changed("l1b") {
		opts.l1b = writeL1B
	}
	if fs.Changed("l1bs") {
		opts.l1bs = writeL1BS
	}
	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 {
		fs.Usage()
		return options{}, errors.New("no input files")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log := logging.WithRunLogger(ctx, logging.NewFromEnv())

	tracing := observability.TracingConfigFromEnv()
	tracing.Version = version
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewProcessorCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(opts.metricsAddr, collector, log)

	failed := run(ctx, opts, log, collector)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if failed > 0 {
		log.Error(ctx, "processing finished with failures", logging.Int("failed_files", failed))
		stop()
		os.Exit(1)
	}
}

// run processes every input and returns the number of files that failed.
// Configuration errors count as a failure of every input.
func run(ctx context.Context, opts options, log logging.Logger, collector *observability.ProcessorCollector) int {
	params, err := config.Load(opts.cstPath, opts.chdPath, opts.cnfPath)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		return len(opts.inputs)
	}
	if opts.l1b != nil {
		params.CNF.WriteL1B = *opts.l1b
	}
	if opts.l1bs != nil {
		params.CNF.WriteL1BS = *opts.l1bs
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		log.Error(ctx, "cannot create output directory", logging.String("dir", opts.outDir), logging.Err(err))
		return len(opts.inputs)
	}

	pipeline, err := core.NewPipeline(params)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		return len(opts.inputs)
	}

	failed := 0
	for _, path := range opts.inputs {
		if ctx.Err() != nil {
			collector.FileProcessed(observability.FileStatusCancelled)
			failed++
			continue
		}
		fileLog := log.With(logging.String("file", filepath.Base(path)))
		proc := l1b.NewProcessor(pipeline,
			l1b.WithLogger(fileLog),
			l1b.WithMetrics(collector),
		)
		f := fileJob{path: path, outDir: opts.outDir, params: params, log: fileLog}
		summary, outputs, err := f.process(ctx, proc)
		switch {
		case errors.Is(err, context.Canceled):
			collector.FileProcessed(observability.FileStatusCancelled)
			fileLog.Warn(ctx, "processing cancelled", logging.Int("written", summary.SurfacesWritten))
			failed++
		case err != nil:
			collector.FileProcessed(observability.FileStatusFailed)
			fileLog.Error(ctx, "processing failed", logging.Err(err))
			failed++
		default:
			collector.FileProcessed(observability.FileStatusOK)
			fileLog.Info(ctx, "processing complete",
				logging.Int("bursts", summary.BurstsRead),
				logging.Int("written", summary.SurfacesWritten),
				logging.Int("skipped", summary.SurfacesSkipped),
				logging.Int("gaps", summary.Gaps),
				logging.Any("outputs", outputs))
		}
	}
	return failed
}

type fileJob struct {
	path   string
	outDir string
	params config.Params
	log    logging.Logger
}

// closableSink is a product writer that materializes its file on Close.
type closableSink interface {
	l1b.RecordSink
	Close() error
	Path() string
}

// process runs one L1A file through proc. Records written before a
// cancellation are still flushed to the products. Any other failure leaves no
// output behind.
func (f fileJob) process(ctx context.Context, proc *l1b.Processor) (l1b.Summary, []string, error) {
	reader, err := product.OpenL1A(f.path, product.L1AOptionsFor(f.params.CNF))
	if err != nil {
		return l1b.Summary{}, nil, &l1b.FileError{Path: f.path, Err: err}
	}
	f.log.Debug(ctx, "opened l1a", logging.Int("records", reader.Len()))

	mission := reader.Mission()
	if mission == "" {
		mission = f.params.CHD.Mission
	}
	info := product.Info{
		Mission:         mission,
		SoftwareVersion: version,
		Epoch:           f.params.CST.Epoch,
		TimestampFormat: f.params.CNF.TimestampFormat,
	}
	samples := f.params.PaddedSamples()
	maxLooks := f.params.CNF.NLooksStack

	var writers []closableSink
	if f.params.CNF.WriteL1B {
		writers = append(writers, product.NewL1BWriter(f.outDir, info, samples, maxLooks))
	}
	if f.params.CNF.WriteL1BS {
		writers = append(writers, product.NewL1BSWriter(f.outDir, info, samples, maxLooks))
	}
	sink := make(l1b.MultiSink, len(writers))
	for i, w := range writers {
		sink[i] = w
	}

	summary, runErr := proc.Run(ctx, reader, sink)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return summary, nil, &l1b.FileError{Path: f.path, Err: runErr}
	}

	var outputs []string
	var closeErrs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			closeErrs = append(closeErrs, err)
			continue
		}
		outputs = append(outputs, w.Path())
	}
	if err := errors.Join(closeErrs...); err != nil {
		return summary, outputs, &l1b.FileError{Path: f.path, Err: err}
	}
	if runErr != nil {
		return summary, outputs, &l1b.FileError{Path: f.path, Err: runErr}
	}
	return summary, outputs, nil
}

func serveMetrics(addr string, collector *observability.ProcessorCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

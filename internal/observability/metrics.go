package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File outcome labels for ddp_files_processed_total.
const (
	FileStatusOK        = "ok"
	FileStatusFailed    = "failed"
	FileStatusCancelled = "cancelled"
)

// ProcessorCollector bundles Prometheus metrics for the L1B processor. Its
// methods are nil-safe so callers can pass a nil collector when metrics are
// disabled.
type ProcessorCollector struct {
	gatherer prometheus.Gatherer

	BurstsRead         prometheus.Counter
	SurfacesCreatedCnt prometheus.Counter
	SurfacesWrittenCnt prometheus.Counter
	SurfacesSkippedCnt *prometheus.CounterVec
	Gaps               prometheus.Counter
	FilesProcessed     *prometheus.CounterVec
	SurfaceDuration    prometheus.Histogram
	BufferedBursts     prometheus.Gauge
	BufferedSurfaces   prometheus.Gauge
}

// NewProcessorCollector registers processor metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewProcessorCollector(reg prometheus.Registerer) (*ProcessorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	bursts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ddp_bursts_read_total",
		Help: "Total number of L1A bursts read.",
	}), "ddp_bursts_read_total")
	if err != nil {
		return nil, err
	}
	created, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ddp_surfaces_created_total",
		Help: "Total number of surface locations created by the tracker.",
	}), "ddp_surfaces_created_total")
	if err != nil {
		return nil, err
	}
	written, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ddp_surfaces_written_total",
		Help: "Total number of surface locations written to the products.",
	}), "ddp_surfaces_written_total")
	if err != nil {
		return nil, err
	}
	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ddp_surfaces_skipped_total",
		Help: "Total number of surface locations dropped, labeled by reason.",
	}, []string{"reason"}), "ddp_surfaces_skipped_total")
	if err != nil {
		return nil, err
	}
	gaps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ddp_gaps_total",
		Help: "Total number of acquisition gaps detected in the burst stream.",
	}), "ddp_gaps_total")
	if err != nil {
		return nil, err
	}
	files, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ddp_files_processed_total",
		Help: "Total number of L1A files processed, labeled by outcome.",
	}, []string{"status"}), "ddp_files_processed_total")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ddp_surface_processing_duration_seconds",
		Help:    "Time spent finalizing one surface location, from beam angles to write.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}), "ddp_surface_processing_duration_seconds")
	if err != nil {
		return nil, err
	}
	bufBursts, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ddp_buffered_bursts",
		Help: "Bursts currently held in the processor buffer.",
	}), "ddp_buffered_bursts")
	if err != nil {
		return nil, err
	}
	bufSurfaces, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ddp_buffered_surfaces",
		Help: "Surface locations currently held in the processor buffer.",
	}), "ddp_buffered_surfaces")
	if err != nil {
		return nil, err
	}

	return &ProcessorCollector{
		gatherer:           gatherer,
		BurstsRead:         bursts,
		SurfacesCreatedCnt: created,
		SurfacesWrittenCnt: written,
		SurfacesSkippedCnt: skipped,
		Gaps:               gaps,
		FilesProcessed:     files,
		SurfaceDuration:    duration,
		BufferedBursts:     bufBursts,
		BufferedSurfaces:   bufSurfaces,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ProcessorCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *ProcessorCollector) BurstRead() {
	if c == nil {
		return
	}
	c.BurstsRead.Inc()
}

func (c *ProcessorCollector) SurfacesCreated(n int) {
	if c == nil {
		return
	}
	c.SurfacesCreatedCnt.Add(float64(n))
}

func (c *ProcessorCollector) SurfaceWritten(d time.Duration) {
	if c == nil {
		return
	}
	c.SurfacesWrittenCnt.Inc()
	c.SurfaceDuration.Observe(d.Seconds())
}

func (c *ProcessorCollector) SurfaceSkipped(reason string) {
	if c == nil {
		return
	}
	c.SurfacesSkippedCnt.WithLabelValues(reason).Inc()
}

func (c *ProcessorCollector) GapDetected() {
	if c == nil {
		return
	}
	c.Gaps.Inc()
}

func (c *ProcessorCollector) SetBuffered(bursts, surfaces int) {
	if c == nil {
		return
	}
	c.BufferedBursts.Set(float64(bursts))
	c.BufferedSurfaces.Set(float64(surfaces))
}

// FileProcessed counts one input file with its outcome label.
func (c *ProcessorCollector) FileProcessed(status string) {
	if c == nil {
		return
	}
	c.FilesProcessed.WithLabelValues(status).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

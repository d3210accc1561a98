// Package metrics exposes prometheus.Collector wrappers around the
// aligner, estimator, and timestamper status records. Nothing here
// registers against prometheus's global default registry from
// package-level state: every collector is a plain
// value the caller constructs and registers itself — this library never
// touches global state (see spec.md §5's no-singleton rule).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/squadracorsepolito/tsalign/aligner"
	"github.com/squadracorsepolito/tsalign/estimator"
	"github.com/squadracorsepolito/tsalign/timestamper"
	"github.com/squadracorsepolito/tsalign/tscale"
)

// AlignerStatusSource is satisfied by *aligner.Aligner and
// *aligner.PullAligner.
type AlignerStatusSource interface {
	GetStatus(now tscale.Time) aligner.AlignerStatus
}

// AlignerCollector reports an Aligner's AlignerStatus at scrape time. It
// never mutates the aligner and owns no background goroutine.
type AlignerCollector struct {
	source AlignerStatusSource
	now    func() tscale.Time

	currentTime    *prometheus.Desc
	latestTime     *prometheus.Desc
	droppedLate    *prometheus.Desc
	streamFill     *prometheus.Desc
	streamDropped  *prometheus.Desc
	streamBackward *prometheus.Desc
}

// NewAlignerCollector builds a collector for source. now supplies the
// timestamp passed to GetStatus on every scrape; pass a wall-clock source
// (e.g. one returning tscale.FromTime(time.Now())) in production, a fixed
// clock in tests.
func NewAlignerCollector(source AlignerStatusSource, now func() tscale.Time) *AlignerCollector {
	return &AlignerCollector{
		source: source,
		now:    now,

		currentTime: prometheus.NewDesc(
			"tsalign_aligner_current_time_seconds", "Last emitted sample time, as aligner-domain seconds.",
			[]string{"aligner"}, nil),
		latestTime: prometheus.NewDesc(
			"tsalign_aligner_latest_arrival_seconds", "Most recent accepted arrival, as aligner-domain seconds.",
			[]string{"aligner"}, nil),
		droppedLate: prometheus.NewDesc(
			"tsalign_aligner_dropped_late_total", "Samples dropped for arriving before the current output time.",
			[]string{"aligner"}, nil),
		streamFill: prometheus.NewDesc(
			"tsalign_aligner_stream_buffer_fill", "Current buffer occupancy per stream.",
			[]string{"aligner", "stream"}, nil),
		streamDropped: prometheus.NewDesc(
			"tsalign_aligner_stream_dropped_full_total", "Samples dropped per stream for a full fixed-capacity buffer.",
			[]string{"aligner", "stream"}, nil),
		streamBackward: prometheus.NewDesc(
			"tsalign_aligner_stream_backward_total", "Samples rejected per stream for arriving backward in time.",
			[]string{"aligner", "stream"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *AlignerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.currentTime
	ch <- c.latestTime
	ch <- c.droppedLate
	ch <- c.streamFill
	ch <- c.streamDropped
	ch <- c.streamBackward
}

// Collect implements prometheus.Collector.
func (c *AlignerCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.GetStatus(c.now())

	ch <- prometheus.MustNewConstMetric(c.currentTime, prometheus.GaugeValue, status.CurrentTime.Seconds(), status.Name)
	ch <- prometheus.MustNewConstMetric(c.latestTime, prometheus.GaugeValue, status.LatestTime.Seconds(), status.Name)
	ch <- prometheus.MustNewConstMetric(c.droppedLate, prometheus.CounterValue, float64(status.SamplesDroppedLateArriving), status.Name)

	for _, s := range status.Streams {
		ch <- prometheus.MustNewConstMetric(c.streamFill, prometheus.GaugeValue, float64(s.BufferFill), status.Name, s.Name)
		ch <- prometheus.MustNewConstMetric(c.streamDropped, prometheus.CounterValue, float64(s.SamplesDroppedBufferFull), status.Name, s.Name)
		ch <- prometheus.MustNewConstMetric(c.streamBackward, prometheus.CounterValue, float64(s.SamplesBackwardInTime), status.Name, s.Name)
	}
}

// EstimatorStatusSource is satisfied by *estimator.Estimator.
type EstimatorStatusSource interface {
	GetStatus(now tscale.Time) estimator.Status
}

// EstimatorCollector reports an Estimator's Status at scrape time.
type EstimatorCollector struct {
	source EstimatorStatusSource
	now    func() tscale.Time
	label  string

	period         *prometheus.Desc
	latency        *prometheus.Desc
	lostTotal      *prometheus.Desc
	expectedLosses *prometheus.Desc
	windowSize     *prometheus.Desc
}

// NewEstimatorCollector builds a collector for source, labeled with
// name (since an Estimator carries no name of its own).
func NewEstimatorCollector(name string, source EstimatorStatusSource, now func() tscale.Time) *EstimatorCollector {
	return &EstimatorCollector{
		source: source,
		now:    now,
		label:  name,

		period: prometheus.NewDesc(
			"tsalign_estimator_period_seconds", "Current period estimate.",
			[]string{"estimator"}, nil),
		latency: prometheus.NewDesc(
			"tsalign_estimator_latency_seconds", "Current latency correction.",
			[]string{"estimator"}, nil),
		lostTotal: prometheus.NewDesc(
			"tsalign_estimator_lost_samples_total", "Running total of samples inferred lost.",
			[]string{"estimator"}, nil),
		expectedLosses: prometheus.NewDesc(
			"tsalign_estimator_expected_losses", "Announced losses not yet reconciled against a real gap.",
			[]string{"estimator"}, nil),
		windowSize: prometheus.NewDesc(
			"tsalign_estimator_window_size", "Current sample window occupancy.",
			[]string{"estimator"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *EstimatorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.period
	ch <- c.latency
	ch <- c.lostTotal
	ch <- c.expectedLosses
	ch <- c.windowSize
}

// Collect implements prometheus.Collector.
func (c *EstimatorCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.GetStatus(c.now())

	ch <- prometheus.MustNewConstMetric(c.period, prometheus.GaugeValue, status.Period.Seconds(), c.label)
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, status.Latency.Seconds(), c.label)
	ch <- prometheus.MustNewConstMetric(c.lostTotal, prometheus.CounterValue, float64(status.LostSamplesTotal), c.label)
	ch <- prometheus.MustNewConstMetric(c.expectedLosses, prometheus.GaugeValue, float64(status.ExpectedLosses), c.label)
	ch <- prometheus.MustNewConstMetric(c.windowSize, prometheus.GaugeValue, float64(status.WindowSize), c.label)
}

// TimestamperStatusSource is satisfied by *timestamper.Timestamper[T]
// for any T.
type TimestamperStatusSource interface {
	GetStatus(now tscale.Time) timestamper.Status
}

// TimestamperCollector reports a Timestamper's Status at scrape time.
type TimestamperCollector struct {
	source TimestamperStatusSource
	now    func() tscale.Time
	label  string

	pendingItems *prometheus.Desc
	pendingRefs  *prometheus.Desc
	matchedTotal *prometheus.Desc
	lossesTotal  *prometheus.Desc
	arenaInUse   *prometheus.Desc
}

// NewTimestamperCollector builds a collector for source, labeled with
// name.
func NewTimestamperCollector(name string, source TimestamperStatusSource, now func() tscale.Time) *TimestamperCollector {
	return &TimestamperCollector{
		source: source,
		now:    now,
		label:  name,

		pendingItems: prometheus.NewDesc(
			"tsalign_timestamper_pending_items", "Items queued awaiting a reference match.",
			[]string{"timestamper"}, nil),
		pendingRefs: prometheus.NewDesc(
			"tsalign_timestamper_pending_references", "Reference ticks queued awaiting an item match.",
			[]string{"timestamper"}, nil),
		matchedTotal: prometheus.NewDesc(
			"tsalign_timestamper_matched_total", "Running total of items matched to a reference tick.",
			[]string{"timestamper"}, nil),
		lossesTotal: prometheus.NewDesc(
			"tsalign_timestamper_losses_total", "Running total of reference ticks with no matching item.",
			[]string{"timestamper"}, nil),
		arenaInUse: prometheus.NewDesc(
			"tsalign_timestamper_arena_in_use", "Arena slots currently holding a pending item.",
			[]string{"timestamper"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *TimestamperCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingItems
	ch <- c.pendingRefs
	ch <- c.matchedTotal
	ch <- c.lossesTotal
	ch <- c.arenaInUse
}

// Collect implements prometheus.Collector.
func (c *TimestamperCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.GetStatus(c.now())

	ch <- prometheus.MustNewConstMetric(c.pendingItems, prometheus.GaugeValue, float64(status.PendingItems), c.label)
	ch <- prometheus.MustNewConstMetric(c.pendingRefs, prometheus.GaugeValue, float64(status.PendingReferences), c.label)
	ch <- prometheus.MustNewConstMetric(c.matchedTotal, prometheus.CounterValue, float64(status.MatchedTotal), c.label)
	ch <- prometheus.MustNewConstMetric(c.lossesTotal, prometheus.CounterValue, float64(status.LossesTotal), c.label)
	ch <- prometheus.MustNewConstMetric(c.arenaInUse, prometheus.GaugeValue, float64(status.ArenaInUse), c.label)
}

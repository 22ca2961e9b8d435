// Package metrics exposes the prometheus counters and histograms emitted
// by the minter loop and the validator registry, following the
// Namespace/Subsystem/labelled-vector layout the rest of this codebase's
// ancestry uses for its own instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bt2c"

// Consensus wraps every metric the minter and validator registry emit.
type Consensus struct {
	kernelAttempts   *prometheus.CounterVec
	kernelDuration   *prometheus.HistogramVec
	blocksProduced   *prometheus.CounterVec
	slotsMissed      *prometheus.CounterVec
	validatorsActive prometheus.Gauge
	slashEvents      *prometheus.CounterVec
	stakeModifierAge *prometheus.HistogramVec
}

// NewConsensus registers every metric against reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests that construct more than one Consensus.
func NewConsensus(reg prometheus.Registerer) *Consensus {
	factory := promauto.With(reg)
	return &Consensus{
		kernelAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "attempts_total",
			Help:      "Kernel hash checks performed, partitioned by outcome.",
		}, []string{"network", "result"}),
		kernelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "check_duration_seconds",
			Help:      "Wall-clock time spent evaluating the kernel predicate.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		blocksProduced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "minter",
			Name:      "blocks_produced_total",
			Help:      "Blocks successfully minted, partitioned by validator.",
		}, []string{"network", "validator"}),
		slotsMissed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "minter",
			Name:      "slots_missed_total",
			Help:      "Slots where this node was eligible to mint but selection or assembly failed.",
		}, []string{"network", "reason"}),
		validatorsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "active",
			Help:      "Number of validators currently eligible for selection.",
		}),
		slashEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validator",
			Name:      "slash_events_total",
			Help:      "Slashing events applied, partitioned by validator.",
		}, []string{"network", "validator"}),
		stakeModifierAge: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "modifier",
			Name:      "age_seconds",
			Help:      "Age of the stake modifier in effect when a kernel check ran.",
			Buckets:   prometheus.ExponentialBuckets(60, 4, 8),
		}, []string{"network"}),
	}
}

// ObserveKernelCheck records one kernel predicate evaluation.
func (c *Consensus) ObserveKernelCheck(network string, passed bool, modifierAgeSeconds float64, start time.Time) {
	result := "fail"
	if passed {
		result = "pass"
	}
	c.kernelAttempts.WithLabelValues(network, result).Inc()
	c.kernelDuration.WithLabelValues(network).Observe(time.Since(start).Seconds())
	c.stakeModifierAge.WithLabelValues(network).Observe(modifierAgeSeconds)
}

// ObserveBlockProduced records a successful mint by validator.
func (c *Consensus) ObserveBlockProduced(network, validator string) {
	c.blocksProduced.WithLabelValues(network, validator).Inc()
}

// ObserveSlotMissed records a slot this node did not fill, partitioned by
// reason, including slots where it was not selected at all.
func (c *Consensus) ObserveSlotMissed(network, reason string) {
	c.slotsMissed.WithLabelValues(network, reason).Inc()
}

// SetActiveValidators sets the current active-validator gauge.
func (c *Consensus) SetActiveValidators(count int) {
	c.validatorsActive.Set(float64(count))
}

// ObserveSlash records one slashing event against a validator.
func (c *Consensus) ObserveSlash(network, validator string) {
	c.slashEvents.WithLabelValues(network, validator).Inc()
}

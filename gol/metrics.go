package gol

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the progress of a run. A nil *Metrics records nothing.
type Metrics struct {
	Generations      prometheus.Counter
	GenerationTime   prometheus.Histogram
	StepTime         prometheus.Histogram
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	AliveCells       prometheus.Gauge
	ProtocolFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gol_generations_total",
			Help: "Generations completed by the coordinator",
		}),
		GenerationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gol_generation_duration_seconds",
			Help:    "Duration of one exchange round including the barrier",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		StepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gol_worker_step_duration_seconds",
			Help:    "Duration of receive, compute and send on a worker",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gol_exchange_sent_bytes_total",
			Help: "Packed band bytes sent towards workers",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gol_exchange_received_bytes_total",
			Help: "Packed interior bytes returned by workers",
		}),
		AliveCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gol_alive_cells",
			Help: "Alive cells after the last completed generation",
		}),
		ProtocolFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gol_protocol_failures_total",
			Help: "Exchange rounds that failed",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Generations, m.GenerationTime, m.StepTime,
			m.BytesSent, m.BytesReceived, m.AliveCells, m.ProtocolFailures)
	}
	return m
}

type timer struct {
	histogram prometheus.Histogram
	start     time.Time
}

func (t timer) observe() {
	if t.histogram != nil {
		t.histogram.Observe(time.Since(t.start).Seconds())
	}
}

func (m *Metrics) startStep() timer {
	if m == nil {
		return timer{}
	}
	return timer{histogram: m.StepTime, start: time.Now()}
}

func (m *Metrics) startGeneration() timer {
	if m == nil {
		return timer{}
	}
	return timer{histogram: m.GenerationTime, start: time.Now()}
}

func (m *Metrics) bandExchanged(sent, received int) {
	if m == nil {
		return
	}
	m.BytesSent.Add(float64(sent))
	m.BytesReceived.Add(float64(received))
}

func (m *Metrics) generationDone(alive int) {
	if m == nil {
		return
	}
	m.Generations.Inc()
	m.AliveCells.Set(float64(alive))
}

func (m *Metrics) stepFailed() {
	if m == nil {
		return
	}
	m.ProtocolFailures.Inc()
}

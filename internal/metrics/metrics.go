// Package metrics exposes solve and operator statistics as prometheus
// collectors.
package metrics

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

const namespace = "cascade"

// Collectors owns a private registry so several runs in one process do not
// collide.
type Collectors struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	solves       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	depth        prometheus.Gauge
	operatorNNZ  *prometheus.GaugeVec
	operatorFill *prometheus.GaugeVec
	fluxIntegral *prometheus.GaugeVec
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_steps_total",
			Help:      "Depth steps taken by the transport solver.",
		}, []string{"integrator"}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Finished solves by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of successful solves.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"integrator", "kernel"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solve_depth_g_cm2",
			Help:      "Slant depth reached by the running solve.",
		}),
		operatorNNZ: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_nonzeros",
			Help:      "Stored nonzeros of the transport operators.",
		}, []string{"operator"}),
		operatorFill: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operator_density",
			Help:      "Nonzero fraction of the transport operators.",
		}, []string{"operator"}),
		fluxIntegral: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flux_integral",
			Help:      "Trapezoidal integral over energy of an exported surface flux.",
		}, []string{"species"}),
	}
	c.registry.MustRegister(c.steps, c.solves, c.duration, c.depth,
		c.operatorNNZ, c.operatorFill, c.fluxIntegral)
	return c
}

func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// ObserveOperators records operator size and fill.
func (c *Collectors) ObserveOperators(st operator.Stats) {
	c.operatorNNZ.WithLabelValues("int").Set(float64(st.IntNNZ))
	c.operatorNNZ.WithLabelValues("dec").Set(float64(st.DecNNZ))
	c.operatorFill.WithLabelValues("int").Set(st.IntDensity)
	c.operatorFill.WithLabelValues("dec").Set(st.DecDensity)
}

// ObserveSolve records the outcome of one solve.
func (c *Collectors) ObserveSolve(integrator, kernel string, elapsed time.Duration, err error) {
	if err != nil {
		c.solves.WithLabelValues("error").Inc()
		return
	}
	c.solves.WithLabelValues("ok").Inc()
	c.duration.WithLabelValues(integrator, kernel).Observe(elapsed.Seconds())
}

// ObserveFluxes sets the energy integral of every flux.
func (c *Collectors) ObserveFluxes(energies []float64, fluxes map[string][]float64) {
	names := make([]string, 0, len(fluxes))
	for n := range fluxes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f := fluxes[n]
		if len(f) != len(energies) || len(f) < 2 {
			continue
		}
		c.fluxIntegral.WithLabelValues(n).Set(integrate.Trapezoidal(energies, f))
	}
}

// Observer counts steps and tracks the depth of a running solve.
func (c *Collectors) Observer(integrator string) dynamo.Observer {
	return &stepObserver{steps: c.steps.WithLabelValues(integrator), depth: c.depth}
}

type stepObserver struct {
	steps prometheus.Counter
	depth prometheus.Gauge
	last  int
}

func (o *stepObserver) OnStep(step, total int, X float64) {
	if step > o.last {
		o.steps.Add(float64(step - o.last))
	}
	o.last = step
	o.depth.Set(X)
}

// WriteToTextfile dumps the registry in the node-exporter textfile format.
func (c *Collectors) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

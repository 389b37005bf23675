package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"biscuit/dispatch"
	"biscuit/mem"
)

// metricsSet is the Prometheus gauge/counter set of SPEC_FULL.md's ambient
// stack: tick count, free and total frames, and the scheduler's switch,
// idle-step and run-step counters, all scraped off the live kernel on a short interval
// rather than pushed inline from the hot path (keeping kernel code free of
// a prometheus import, matching the "external collaborator" framing this
// repo uses for everything that is not core kernel logic).
type metricsSet struct {
	ticks       prometheus.Gauge
	framesFree  prometheus.Gauge
	framesTotal prometheus.Gauge
	switches    prometheus.Counter
	idleSteps   prometheus.Counter
	runSteps    prometheus.Counter

	// last-seen cumulative scheduler counters, so repeated samples of an
	// always-growing stat add deltas to the Prometheus counters instead of
	// double-counting the whole cumulative value every tick.
	lastSwitches, lastIdle, lastRun int64
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	f := promauto.With(reg)
	return &metricsSet{
		ticks: f.NewGauge(prometheus.GaugeOpts{
			Name: "kernelsim_uptime_ticks",
			Help: "Ticks elapsed since boot.",
		}),
		framesFree: f.NewGauge(prometheus.GaugeOpts{
			Name: "kernelsim_frames_free",
			Help: "Physical frames currently on the free list.",
		}),
		framesTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "kernelsim_frames_total",
			Help: "Total physical frames owned by the allocator.",
		}),
		switches: f.NewCounter(prometheus.CounterOpts{
			Name: "kernelsim_context_switches_total",
			Help: "Scheduler steps that ran a process.",
		}),
		idleSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "kernelsim_idle_steps_total",
			Help: "Scheduler steps where nothing was runnable.",
		}),
		runSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "kernelsim_run_steps_total",
			Help: "Scheduler steps that handed a CPU to a process.",
		}),
	}
}

// sample snapshots the kernel's counters into the gauge/counter set. The
// scheduler's own counters are cumulative already (sched.Scheduler.Stats),
// so sample adds only the growth since the previous sample to each
// Prometheus counter.
func (m *metricsSet) sample(k *dispatch.Kernel, alloc *mem.Allocator) {
	m.ticks.Set(float64(k.Uptime()))
	free, total := alloc.Stats()
	m.framesFree.Set(float64(free))
	m.framesTotal.Set(float64(total))
	switches, idle, run := k.Sched.Stats()
	if d := switches - m.lastSwitches; d > 0 {
		m.switches.Add(float64(d))
	}
	if d := idle - m.lastIdle; d > 0 {
		m.idleSteps.Add(float64(d))
	}
	if d := run - m.lastRun; d > 0 {
		m.runSteps.Add(float64(d))
	}
	m.lastSwitches, m.lastIdle, m.lastRun = switches, idle, run
}

// serveMetrics starts a background HTTP server exposing /metrics and
// resamples the kernel's counters every interval until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, interval time.Duration, k *dispatch.Kernel, alloc *mem.Allocator) (*http.Server, *metricsSet) {
	reg := prometheus.NewRegistry()
	ms := newMetricsSet(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ms.sample(k, alloc)
			}
		}
	}()

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv, ms
}

package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/puppetizer/pkg/logger"
)

var (
	// ServicesUp tracks how many supervised services are currently running.
	ServicesUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "puppetizer_services_up",
		Help: "Number of supervised services currently up",
	})
	// ReapedTotal counts reaped children, partitioned by what the PID
	// matched (service, bootstrap, zombie).
	ReapedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "puppetizer_reaped_children_total",
		Help: "Total number of reaped child processes",
	}, []string{"kind"})
	// HaltsTotal counts halt transitions, partitioned by trigger reason.
	HaltsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "puppetizer_halts_total",
		Help: "Total number of halt transitions",
	}, []string{"reason"})
	// CommandsTotal counts control commands by type and result tag.
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "puppetizer_control_commands_total",
		Help: "Total number of control commands processed",
	}, []string{"type", "result"})
)

// InitMetrics registers the Prometheus collectors and, when addr is
// non-empty, starts an HTTP server exposing them on /metrics.
func InitMetrics(addr string) {
	prometheus.MustRegister(ServicesUp)
	prometheus.MustRegister(ReapedTotal)
	prometheus.MustRegister(HaltsTotal)
	prometheus.MustRegister(CommandsTotal)

	if addr == "" {
		return
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

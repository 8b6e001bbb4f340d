package obshttp

import "github.com/prometheus/client_golang/prometheus"

// RegisterMetrics wires a gauge reporting the current account count into
// the default Prometheus registry, scraped alongside the Go runtime
// collectors promhttp.Handler already exposes.
func RegisterMetrics(probe Probe) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "farmrunner",
		Name:      "accounts_total",
		Help:      "Number of enrolled accounts known to the runtime manager.",
	}, func() float64 {
		return float64(len(probe.ListAccounts()))
	})
	return prometheus.Register(gauge)
}

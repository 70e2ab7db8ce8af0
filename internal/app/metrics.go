package app

import "github.com/prometheus/client_golang/prometheus"

var (
	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ghostbridge_connections",
			Help: "Current number of live transport sessions.",
		},
	)
	payloadsRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostbridge_payloads_relayed_total",
			Help: "Total payloads delivered to recipients.",
		},
	)
	payloadsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostbridge_payloads_rejected_total",
			Help: "Total payloads dropped as malformed before relay.",
		},
	)
	sendsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghostbridge_sends_dropped_total",
			Help: "Total deliveries dropped due to receiver backpressure.",
		},
	)
)

func init() {
	prometheus.MustRegister(connections, payloadsRelayed, payloadsRejected, sendsDropped)
}

func incConnections() {
	connections.Inc()
}

func decConnections() {
	connections.Dec()
}

func addRelayed(count int) {
	payloadsRelayed.Add(float64(count))
}

func incRejected() {
	payloadsRejected.Inc()
}

func addSendsDropped(count int) {
	sendsDropped.Add(float64(count))
}

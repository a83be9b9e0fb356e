package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	gatewayConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsdesk_gateway_connected",
			Help: "Whether the gateway event stream is connected (1) or not (0).",
		},
	)
	gatewayReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsdesk_gateway_reconnects_total",
			Help: "Total failed connection attempts to the gateway event stream.",
		},
	)
)

func init() {
	prometheus.MustRegister(gatewayConnected, gatewayReconnects)
}

package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open websocket connections",
		},
	)
	Messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Websocket messages, by direction",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(Connections)
	prometheus.MustRegister(Messages)
}

package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_active_sessions",
			Help: "Player sessions currently held in memory",
		},
	)
	FlushWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_session_flushes_total",
			Help: "Write-behind flushes, by queue and result",
		},
		[]string{"queue", "result"},
	)
	Taps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "game_taps_total",
			Help: "Accepted taps",
		},
	)
)

func init() {
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(FlushWrites)
	prometheus.MustRegister(Taps)
}

func flushResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

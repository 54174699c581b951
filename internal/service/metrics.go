package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GameActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_actions_total",
			Help: "Server actions executed, by action and result",
		},
		[]string{"action", "result"},
	)
	CoinsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_coins_granted_total",
			Help: "Coins credited to players, by transaction kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(GameActions)
	prometheus.MustRegister(CoinsGranted)
}

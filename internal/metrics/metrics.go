package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weedwatch_weather_fetches_total",
			Help: "Total Open-Meteo API fetches",
		},
		[]string{"endpoint", "status"},
	)

	WeatherFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weedwatch_weather_fetch_latency_seconds",
			Help:    "Open-Meteo fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RecordsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weedwatch_records_ingested_total",
			Help: "Total daily weather records upserted",
		},
	)

	TriggersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weedwatch_triggers_fired_total",
			Help: "Total trigger firings by rule",
		},
		[]string{"rule"},
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weedwatch_alerts_sent_total",
			Help: "Total alerts dispatched by kind",
		},
		[]string{"kind", "status"},
	)
)

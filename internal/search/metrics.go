package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the search pipeline collectors. Each server builds its own
// set on its own registry so tests never collide on registration.
type Metrics struct {
	ProviderCalls    *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ImageResolutions *prometheus.CounterVec
	StreamedTokens   prometheus.Counter
	Searches         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchbrief_provider_calls_total",
				Help: "Search provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchbrief_provider_latency_seconds",
				Help:    "Search provider call latency",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"provider"},
		),
		ImageResolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchbrief_image_resolutions_total",
				Help: "Image resolution outcomes by stage",
			},
			[]string{"stage"},
		),
		StreamedTokens: f.NewCounter(prometheus.CounterOpts{
			Name: "searchbrief_streamed_tokens_total",
			Help: "Summary tokens written to clients",
		}),
		Searches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchbrief_searches_total",
				Help: "Search requests by terminal outcome",
			},
			[]string{"outcome"},
		),
	}
}

func orNop(m *Metrics) *Metrics {
	if m == nil {
		return NewMetrics(prometheus.NewRegistry())
	}
	return m
}

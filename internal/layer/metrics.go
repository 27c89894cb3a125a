package layer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LayerDuration tracks time spent in each stage of a layer
	LayerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mosaic_layer_duration_seconds",
		Help:    "Time spent in specific layer stages",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{"layer_type", "stage"})

	forwardTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mosaic_layer_forward_total",
		Help: "Total number of forward calls per layer type",
	}, []string{"layer_type"})

	colPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mosaic_im2col_pool_hits_total",
		Help: "Total number of im2col buffers reused from the pool",
	})

	colPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mosaic_im2col_pool_misses_total",
		Help: "Total number of im2col buffer allocations",
	})
)

package segment

import "github.com/prometheus/client_golang/prometheus"

var (
	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "removebg_inference_duration_seconds",
			Help:    "Segmentation inference latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"backend"},
	)

	inferenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "removebg_inference_errors_total",
			Help: "Total number of failed segmentation inferences",
		},
		[]string{"backend"},
	)

	sessionsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "removebg_inference_sessions_in_use",
			Help: "Number of inference sessions currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(inferenceDuration, inferenceErrors, sessionsInUse)
}

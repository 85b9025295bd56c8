package removebg

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var pipelineResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "removebg_pipeline_results_total",
		Help: "Total number of pipeline runs by operation and result code",
	},
	[]string{"op", "code"},
)

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "removebg_cache_lookups_total",
		Help: "Total number of result cache lookups by outcome",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(pipelineResults, cacheLookups)
}

func observe(op string, err error) {
	pipelineResults.WithLabelValues(op, strconv.Itoa(CodeOf(err))).Inc()
}

// Package metrics 投票流水线的 prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livepoll"

var (
	Registry = prometheus.NewRegistry()

	VotesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_queued_total",
		Help:      "Votes accepted by the gateway and placed on a session queue.",
	})

	VotesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_rejected_total",
		Help:      "Votes dropped by the gateway before queueing.",
	}, []string{"reason"})

	WorkerVotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_votes_total",
		Help:      "Queue entries handled by the worker, by outcome.",
	}, []string{"outcome"})

	WorkerBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "worker_batch_seconds",
		Help:      "Time spent processing one session batch.",
		Buckets:   prometheus.DefBuckets,
	})

	ResultsCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_cache_total",
		Help:      "Results cache lookups, by result.",
	}, []string{"result"})

	StreamConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_connections",
		Help:      "Open live result stream connections.",
	})
)

// 拒绝原因
const (
	ReasonAlreadyVoted = "already_voted"
	ReasonDuplicate    = "duplicate_in_request"
)

// worker 处理结果
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		VotesQueued,
		VotesRejected,
		WorkerVotes,
		WorkerBatchSeconds,
		ResultsCache,
		StreamConnections,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

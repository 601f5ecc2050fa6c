package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArticlesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_articles_ingested_total",
		Help: "The total number of articles fetched from feeds",
	}, []string{"feed"})

	FeedFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_feed_fetch_errors_total",
		Help: "The total number of feed fetch failures",
	}, []string{"feed"})

	ClustersBuilt = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newswire_clusters_built",
		Help: "Number of clusters produced by the last pipeline pass",
	})

	ClusterMembers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswire_cluster_members",
		Help:    "Distribution of member counts per cluster",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	RoutesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_routes_total",
		Help: "Total number of routing decisions by route",
	}, []string{"route"})

	BreakingDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_breaking_denied_total",
		Help: "Total number of breaking publishes denied by the anti-noise policy",
	}, []string{"reason"})

	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_jobs_enqueued_total",
		Help: "Total number of publish jobs enqueued by target",
	}, []string{"target"})

	JobsPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "newswire_jobs_pending",
		Help: "Number of pending publish jobs by target",
	}, []string{"target"})

	JobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswire_jobs_claimed_total",
		Help: "Total number of publish jobs claimed for processing",
	})

	JobsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswire_jobs_reclaimed_total",
		Help: "Total number of stale processing jobs returned to pending",
	})

	DigestsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newswire_digests_published_total",
		Help: "The total number of digest publishes by outcome",
	}, []string{"outcome"})

	BreakingPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newswire_breaking_published_total",
		Help: "The total number of breaking posts published",
	})

	PipelineBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswire_pipeline_batch_duration_seconds",
		Help:    "Duration in seconds to process one pipeline pass",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	ArticleAgeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newswire_article_age_seconds",
		Help:    "Age of articles when pipeline processing starts",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)

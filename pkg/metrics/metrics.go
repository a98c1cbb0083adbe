package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "feed", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "feed", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// CommentMutations counts create/delete outcomes; result is ok|rejected|error|partial.
	CommentMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "feed", Name: "comment_mutations_total", Help: "Comment create/delete calls by outcome."},
		[]string{"op", "result"},
	)
	// CommentPartialFailures counts first-step successes whose counter step failed.
	CommentPartialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "feed", Name: "comment_partial_failures_total", Help: "Comment mutations that left the post comment count out of sync."},
		[]string{"op"},
	)
	CommentCountClamped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "feed", Name: "comment_count_clamped_total", Help: "Decrements that would have taken a comment count below zero."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CommentMutations)
	reg.MustRegister(CommentPartialFailures)
	reg.MustRegister(CommentCountClamped)
}

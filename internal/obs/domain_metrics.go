package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PromotionEvaluationsTotal counts promotion evaluations by outcome code.
	PromotionEvaluationsTotal *prometheus.CounterVec
	// PromotionRedemptionsTotal counts ledger consume attempts by outcome.
	PromotionRedemptionsTotal *prometheus.CounterVec
	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutDuration records checkout latency in milliseconds.
	CheckoutDuration *prometheus.HistogramVec
	// CartsPurgedTotal counts expired carts removed by the worker.
	CartsPurgedTotal prometheus.Counter
	// DBQueryDuration records Postgres statement latency.
	DBQueryDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromotionEvaluationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_evaluations_total",
			Help:      "Count of promotion evaluations by result.",
		}, []string{"result"}))
		PromotionRedemptionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_redemptions_total",
			Help:      "Count of usage ledger consume attempts by result.",
		}, []string{"result"}))
		CartMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"}))
		CheckoutDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Latency of checkout attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		CartsPurgedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_purged_total",
			Help:      "Number of expired carts deleted by the purge task.",
		}))
		DBQueryDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_ms",
			Help:      "Postgres statement latency in milliseconds by SQL verb and outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"operation", "result"}))
	})
}

// CountPromotionEvaluation records an evaluation outcome when metrics are registered.
func CountPromotionEvaluation(result string) {
	if PromotionEvaluationsTotal != nil {
		PromotionEvaluationsTotal.WithLabelValues(result).Inc()
	}
}

func CountPromotionRedemption(result string) {
	if PromotionRedemptionsTotal != nil {
		PromotionRedemptionsTotal.WithLabelValues(result).Inc()
	}
}

func CountCartMutation(op, result string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

func ObserveCheckout(result string, ms float64) {
	if CheckoutDuration != nil {
		CheckoutDuration.WithLabelValues(result).Observe(ms)
	}
}

func CountCartsPurged(n int64) {
	if CartsPurgedTotal != nil && n > 0 {
		CartsPurgedTotal.Add(float64(n))
	}
}

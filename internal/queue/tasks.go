// Package queue defines the background tasks run by the worker on top of asynq.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TypePurgeExpiredCarts deletes carts whose expiry has passed.
const TypePurgeExpiredCarts = "cart:purge_expired"

// DefaultPurgeInterval is how often the scheduler enqueues the purge task.
const DefaultPurgeInterval = 30 * time.Minute

var QueueProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_processed_total",
		Help: "Total tasks processed grouped by status",
	},
	[]string{"kind", "status"},
)

func init() {
	prometheus.MustRegister(QueueProcessedTotal)
}

// CartPurger removes expired carts and reports how many were deleted.
type CartPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewPurgeExpiredCartsTask builds the purge task. It carries no payload.
func NewPurgeExpiredCartsTask() *asynq.Task {
	return asynq.NewTask(TypePurgeExpiredCarts, nil, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

// PurgeHandler processes TypePurgeExpiredCarts.
type PurgeHandler struct {
	Carts CartPurger
}

// ProcessTask implements asynq.Handler.
func (h PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Carts == nil {
		return errors.New("queue: cart purger not configured")
	}
	n, err := h.Carts.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("purged", n).Msg("expired carts purged")
	return nil
}

// NewServeMux routes every task type to its handler and records outcomes.
func NewServeMux(logger zerolog.Logger, purge PurgeHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware(logger), metricsMiddleware)
	mux.Handle(TypePurgeExpiredCarts, purge)
	return mux
}

func loggingMiddleware(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			l := logger.With().Str("task", t.Type()).Logger()
			ctx = l.WithContext(ctx)
			err := next.ProcessTask(ctx, t)
			if err != nil {
				l.Error().Err(err).Msg("task failed")
			}
			return err
		})
	}
}

func metricsMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)
		status := "success"
		if err != nil {
			status = "error"
		}
		QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
		return err
	})
}

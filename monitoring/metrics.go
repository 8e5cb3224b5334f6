package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"ticket-market/models"
)

var (
	purchaseAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_attempts_total",
			Help: "Purchase attempts by payment method and initiation result",
		},
		[]string{"method", "result"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settled transactions by terminal outcome",
		},
		[]string{"outcome"},
	)

	settlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Time spent inside the settlement path",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	settlementAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_anomalies_total",
			Help: "Settlements that hit an unexpected ticket or replay state",
		},
	)

	callbackResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callbacks_total",
			Help: "Inbound gateway callbacks by processing result",
		},
		[]string{"result"},
	)

	earningFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "earning_recording_failures_total",
			Help: "Successful sales whose earning row could not be written",
		},
	)

	reservationExpiries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_expiries_total",
			Help: "Reservations cancelled by the sweeper after the hold window",
		},
	)

	reservationMarkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_reservation_markers_total",
			Help: "Live reservation markers in Redis",
		},
	)
)

func RecordPurchaseAttempt(method models.PaymentMethod, result string) {
	purchaseAttempts.WithLabelValues(string(method), result).Inc()
}

func RecordSettlement(outcome string, duration time.Duration) {
	settlements.WithLabelValues(outcome).Inc()
	settlementDuration.Observe(duration.Seconds())
}

func RecordSettlementAnomaly() {
	settlementAnomalies.Inc()
}

func RecordCallback(result string) {
	callbackResults.WithLabelValues(result).Inc()
}

func RecordEarningFailure() {
	earningFailures.Inc()
}

func RecordReservationExpiry() {
	reservationExpiries.Inc()
}

// Monitor polls Redis for gauge-style metrics that have no natural
// increment point.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectReservationMetrics(ctx)
	}
}

func (m *Monitor) collectReservationMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "reservation:*").Result()
	if err != nil {
		return
	}
	reservationMarkers.Set(float64(len(keys)))
}

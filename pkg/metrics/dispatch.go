package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records fulfillment pipeline counters: orders placed,
// assignment races, deliveries and OTP rejections.
type DispatchMetrics struct {
	ordersCreated       *prometheus.CounterVec
	assignmentConflicts prometheus.Counter
	deliveriesCompleted prometheus.Counter
	deliveriesFailed    prometheus.Counter
	otpRejections       prometheus.Counter
	assignmentLatency   prometheus.Histogram
}

// NewDispatchMetrics registers the fulfillment metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created through checkout, labelled by payment method.",
	}, []string{"payment_method"})
	assignmentConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipment_assignment_conflicts_total",
		Help: "Shipment claims lost to a concurrent winner.",
	})
	deliveriesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_completed_total",
		Help: "Shipments confirmed delivered.",
	})
	deliveriesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_failed_total",
		Help: "Shipments marked failed.",
	})
	otpRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_otp_rejections_total",
		Help: "Delivery confirmations rejected for a bad OTP.",
	})
	assignmentLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipment_assignment_latency_seconds",
		Help:    "Time from shipment creation until an agent is assigned.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	reg.MustRegister(ordersCreated, assignmentConflicts, deliveriesCompleted, deliveriesFailed, otpRejections, assignmentLatency)
	return &DispatchMetrics{
		ordersCreated:       ordersCreated,
		assignmentConflicts: assignmentConflicts,
		deliveriesCompleted: deliveriesCompleted,
		deliveriesFailed:    deliveriesFailed,
		otpRejections:       otpRejections,
		assignmentLatency:   assignmentLatency,
	}
}

// IncOrdersCreated increments the order counter for a payment method.
func (m *DispatchMetrics) IncOrdersCreated(paymentMethod string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	if paymentMethod == "" {
		paymentMethod = "unknown"
	}
	m.ordersCreated.WithLabelValues(paymentMethod).Inc()
}

// IncAssignmentConflict counts a lost claim race.
func (m *DispatchMetrics) IncAssignmentConflict() {
	if m == nil || m.assignmentConflicts == nil {
		return
	}
	m.assignmentConflicts.Inc()
}

// IncDeliveryCompleted counts a confirmed delivery.
func (m *DispatchMetrics) IncDeliveryCompleted() {
	if m == nil || m.deliveriesCompleted == nil {
		return
	}
	m.deliveriesCompleted.Inc()
}

// IncDeliveryFailed counts a failed shipment.
func (m *DispatchMetrics) IncDeliveryFailed() {
	if m == nil || m.deliveriesFailed == nil {
		return
	}
	m.deliveriesFailed.Inc()
}

// IncOTPRejection counts a delivery confirmation rejected for a bad code.
func (m *DispatchMetrics) IncOTPRejection() {
	if m == nil || m.otpRejections == nil {
		return
	}
	m.otpRejections.Inc()
}

// ObserveAssignmentLatency records how long a shipment waited for an agent.
func (m *DispatchMetrics) ObserveAssignmentLatency(d time.Duration) {
	if m == nil || m.assignmentLatency == nil {
		return
	}
	m.assignmentLatency.Observe(d.Seconds())
}

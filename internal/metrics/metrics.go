package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the counters for one process. A nil *Registry is valid and
// records nothing, so components can run without metrics wired.
type Registry struct {
	reg *prometheus.Registry

	CartMutations       *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	OrdersBuilt         *prometheus.CounterVec
	OrderTotal          prometheus.Histogram
	StatusTransitions   *prometheus.CounterVec
	RejectedTransitions prometheus.Counter
	Ratings             *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_cart_mutations_total",
		Help: "Cart ledger mutations by operation.",
	}, []string{"op"})
	persistenceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_persistence_failures_total",
		Help: "Failed writes to local storage by record.",
	}, []string{"record"})
	ordersBuilt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_orders_built_total",
		Help: "Orders built at checkout by payment method.",
	}, []string{"payment_method"})
	orderTotal := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cafe_order_total_dollars",
		Help:    "Final order totals including tax and tip.",
		Buckets: []float64{5, 10, 15, 20, 30, 50, 100},
	})
	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_status_transitions_total",
		Help: "Applied order status transitions by target status.",
	}, []string{"status"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cafe_status_transitions_rejected_total",
		Help: "Status events that would skip or reverse the progression.",
	})
	ratings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cafe_ratings_total",
		Help: "Satisfaction ratings by stars.",
	}, []string{"stars"})

	r.MustRegister(cartMutations, persistenceFailures, ordersBuilt, orderTotal, statusTransitions, rejected, ratings)
	return &Registry{
		reg:                 r,
		CartMutations:       cartMutations,
		PersistenceFailures: persistenceFailures,
		OrdersBuilt:         ordersBuilt,
		OrderTotal:          orderTotal,
		StatusTransitions:   statusTransitions,
		RejectedTransitions: rejected,
		Ratings:             ratings,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) CartMutation(op string) {
	if r == nil {
		return
	}
	r.CartMutations.WithLabelValues(op).Inc()
}

func (r *Registry) PersistenceFailure(record string) {
	if r == nil {
		return
	}
	r.PersistenceFailures.WithLabelValues(record).Inc()
}

func (r *Registry) OrderBuilt(method string, total float64) {
	if r == nil {
		return
	}
	r.OrdersBuilt.WithLabelValues(method).Inc()
	r.OrderTotal.Observe(total)
}

func (r *Registry) StatusTransition(status string) {
	if r == nil {
		return
	}
	r.StatusTransitions.WithLabelValues(status).Inc()
}

func (r *Registry) TransitionRejected() {
	if r == nil {
		return
	}
	r.RejectedTransitions.Inc()
}

func (r *Registry) Rating(stars string) {
	if r == nil {
		return
	}
	r.Ratings.WithLabelValues(stars).Inc()
}

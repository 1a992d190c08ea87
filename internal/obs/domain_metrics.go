package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CartPersistFailuresTotal counts cart store failures that were swallowed.
	CartPersistFailuresTotal *prometheus.CounterVec
	// PricingQuotesTotal counts computed pricing results by badge.
	PricingQuotesTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// EventsEmittedTotal counts domain events by topic and outcome.
	EventsEmittedTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal *prometheus.CounterVec
	// CatalogProducts reports loaded products by pricing tier and tier source.
	CatalogProducts *prometheus.GaugeVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		CartPersistFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Count of cart store load/save failures.",
		}, []string{"op"})
		PricingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of computed pricing results by pack badge.",
		}, []string{"badge"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		EventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Count of emitted domain events by topic and result.",
		}, []string{"topic", "result"})
		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Count of requests rejected by the rate limiter by scope.",
		}, []string{"scope"})
		CatalogProducts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Number of loaded catalog products by pricing tier and tier source.",
		}, []string{"tier", "source"})

		for _, vec := range []**prometheus.CounterVec{&CartMutationsTotal, &CartPersistFailuresTotal, &PricingQuotesTotal, &CheckoutTotal, &EventsEmittedTotal, &RateLimitedTotal} {
			target := vec
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		mustRegisterCollector(reg, CatalogProducts, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				CatalogProducts = v
			}
		})
	})
}

// ObserveCartMutation records the outcome of a cart operation.
func ObserveCartMutation(op, result string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

// ObserveCartPersistFailure records a swallowed cart store failure.
func ObserveCartPersistFailure(op string) {
	if CartPersistFailuresTotal != nil {
		CartPersistFailuresTotal.WithLabelValues(op).Inc()
	}
}

// ObservePricingQuote records a pricing computation by badge kind.
func ObservePricingQuote(badge string) {
	if PricingQuotesTotal == nil {
		return
	}
	if badge == "" {
		badge = "none"
	}
	PricingQuotesTotal.WithLabelValues(badge).Inc()
}

// ObserveCheckout records a checkout outcome.
func ObserveCheckout(result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// ObserveEvent records an emitted domain event.
func ObserveEvent(topic, result string) {
	if EventsEmittedTotal != nil {
		EventsEmittedTotal.WithLabelValues(topic, result).Inc()
	}
}

// ObserveRateLimited records a request rejected by the rate limiter.
func ObserveRateLimited(scope string) {
	if RateLimitedTotal != nil {
		RateLimitedTotal.WithLabelValues(scope).Inc()
	}
}

// SetCatalogProducts sets the loaded product gauge for a tier and source.
func SetCatalogProducts(tier, source string, n int) {
	if CatalogProducts != nil {
		CatalogProducts.WithLabelValues(tier, source).Set(float64(n))
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

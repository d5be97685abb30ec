package transport

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the pipeline's Prometheus metrics. A nil *Collector is
// valid and counts nothing.
type Collector struct {
	requests  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	retries   prometheus.Counter
}

// NewCollector builds the collectors and registers them when reg is non-nil.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authclient",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Outbound requests by method and status class.",
		}, []string{"method", "status"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authclient",
			Subsystem: "session",
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authclient",
			Subsystem: "http",
			Name:      "request_retries_total",
			Help:      "Requests resubmitted after a token refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.requests, c.refreshes, c.retries)
	}
	return c
}

func (c *Collector) ObserveRequest(method, statusClass string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, statusClass).Inc()
}

func (c *Collector) ObserveRefresh(result string) {
	if c == nil {
		return
	}
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveRetry() {
	if c == nil {
		return
	}
	c.retries.Inc()
}

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(apiRequestsTotal) }

var apiRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Operator API requests by route and outcome.",
	},
	[]string{"route", "status"}, // status: 'ok', 'unauthorized', 'forbidden', 'conflict', 'error'
)

func IncAPIRequest(route, status string) {
	apiRequestsTotal.WithLabelValues(norm(route), norm(status)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

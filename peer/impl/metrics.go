package impl

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionMetrics counts the activity of a party's sessions.
type sessionMetrics struct {
	requests prometheus.Counter
	rounds   prometheus.Counter
	aborts   prometheus.Counter
}

func newSessionMetrics(party int, reg prometheus.Registerer) sessionMetrics {
	labels := prometheus.Labels{"party": strconv.Itoa(party)}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mpcstats",
			Subsystem:   "executor",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		if reg == nil {
			return c
		}
		err := reg.Register(c)
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		return c
	}

	return sessionMetrics{
		requests: counter("requests_total", "Aggregation requests started."),
		rounds:   counter("rounds_total", "Communication rounds run."),
		aborts:   counter("aborts_total", "Sessions aborted."),
	}
}

package transport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the traffic of one party.
type Metrics struct {
	PacketsSent prometheus.Counter
	PacketsRecv prometheus.Counter
	BytesSent   prometheus.Counter
	BytesRecv   prometheus.Counter
}

// NewMetrics creates the counters of a party and registers them on reg. A nil
// registerer leaves them unregistered. Counters already registered for the
// same party are reused.
func NewMetrics(party int, reg prometheus.Registerer) *Metrics {
	labels := prometheus.Labels{"party": strconv.Itoa(party)}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mpcstats",
			Subsystem:   "transport",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		return register(reg, c)
	}

	return &Metrics{
		PacketsSent: counter("packets_sent_total", "Packets sent to peers."),
		PacketsRecv: counter("packets_received_total", "Packets received from peers."),
		BytesSent:   counter("payload_bytes_sent_total", "Payload bytes sent to peers."),
		BytesRecv:   counter("payload_bytes_received_total", "Payload bytes received from peers."),
	}
}

func register(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if reg == nil {
		return c
	}
	err := reg.Register(c)
	if err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}

// Instrument wraps a channel so that its traffic is counted in m.
func Instrument(ch Channel, m *Metrics) Channel {
	return &instrumented{Channel: ch, metrics: m}
}

type instrumented struct {
	Channel
	metrics *Metrics
}

func (c *instrumented) Send(pkt Packet, timeout time.Duration) error {
	err := c.Channel.Send(pkt, timeout)
	if err != nil {
		return err
	}
	c.metrics.PacketsSent.Inc()
	c.metrics.BytesSent.Add(float64(pkt.Size()))
	return nil
}

func (c *instrumented) Recv(timeout time.Duration) (Packet, error) {
	pkt, err := c.Channel.Recv(timeout)
	if err != nil {
		return pkt, err
	}
	c.metrics.PacketsRecv.Inc()
	c.metrics.BytesRecv.Add(float64(pkt.Size()))
	return pkt, nil
}

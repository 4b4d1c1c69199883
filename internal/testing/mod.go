// Package testing provides helpers to run three-party sessions in a single
// process over the in-memory transport.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/peer/impl"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/transport/channel"
	"golang.org/x/sync/errgroup"
)

// Option customizes the configuration of every party of a cluster.
type Option func(*peer.Configuration)

// WithAvgPolicy sets the avg policy.
func WithAvgPolicy(policy peer.AvgPolicy) Option {
	return func(c *peer.Configuration) {
		c.AvgPolicy = policy
	}
}

// WithColumns sets the agreed column schema.
func WithColumns(columns ...string) Option {
	return func(c *peer.Configuration) {
		c.Columns = columns
	}
}

// WithReceiveTimeout sets the receive timeout.
func WithReceiveTimeout(d time.Duration) Option {
	return func(c *peer.Configuration) {
		c.ReceiveTimeout = d
	}
}

// WithFracBits sets the fixed-point precision.
func WithFracBits(bits uint) Option {
	return func(c *peer.Configuration) {
		c.FracBits = bits
	}
}

// WithAddresses replaces the party addresses, party i listening on addrs[i].
func WithAddresses(addrs ...string) Option {
	return func(c *peer.Configuration) {
		parties := make([]peer.PartyConfig, len(c.Parties))
		copy(parties, c.Parties)
		for i := range parties {
			parties[i].Address = addrs[i]
		}
		c.Parties = parties
	}
}

// Configs returns the configurations of the three parties of a local
// cluster.
func Configs(opts ...Option) [sharing.Parties]peer.Configuration {
	parties := make([]peer.PartyConfig, sharing.Parties)
	for i := range parties {
		parties[i] = peer.PartyConfig{ID: i, Address: fmt.Sprintf("party-%d", i)}
	}

	var res [sharing.Parties]peer.Configuration
	for i := range res {
		conf := peer.Configuration{
			Protocol:       peer.ProtocolABY3,
			Self:           i,
			Parties:        parties,
			ReceiveTimeout: 5 * time.Second,
		}
		for _, opt := range opts {
			opt(&conf)
		}
		res[i] = conf.WithDefaults()
	}
	return res
}

// Cluster is a set of three established sessions sharing an in-memory
// network.
type Cluster struct {
	Network    *channel.Network
	Configs    [sharing.Parties]peer.Configuration
	Sessions   [sharing.Parties]*impl.Session
	Registries [sharing.Parties]*prometheus.Registry
}

// NewCluster establishes a cluster. The sessions are closed when the test
// ends.
func NewCluster(t *testing.T, opts ...Option) *Cluster {
	return NewClusterFromConfigs(t, Configs(opts...))
}

// NewClusterFromConfigs establishes a cluster from explicit configurations.
func NewClusterFromConfigs(t *testing.T, confs [sharing.Parties]peer.Configuration) *Cluster {
	c := &Cluster{
		Network: channel.NewNetwork(),
		Configs: confs,
	}

	for i := range c.Configs {
		c.Registries[i] = prometheus.NewRegistry()
		c.Configs[i].Registerer = c.Registries[i]
	}

	sessions, errs := c.Establish(context.Background())
	for i, err := range errs {
		require.NoError(t, err, "party %d", i)
	}
	c.Sessions = sessions

	t.Cleanup(func() {
		for _, s := range c.Sessions {
			if s != nil {
				s.Close()
			}
		}
	})

	return c
}

// Establish starts the three sessions concurrently and returns them with
// their errors.
func (c *Cluster) Establish(ctx context.Context) ([sharing.Parties]*impl.Session, [sharing.Parties]error) {
	var sessions [sharing.Parties]*impl.Session
	var errs [sharing.Parties]error

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	wg := sync.WaitGroup{}
	for i := range c.Configs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = impl.NewSession(ctx, c.Configs[i], c.Network.Transport())
		}(i)
	}
	wg.Wait()

	return sessions, errs
}

// ExecuteAll runs one request per party concurrently.
func (c *Cluster) ExecuteAll(ctx context.Context,
	reqs [sharing.Parties]peer.Request) ([sharing.Parties]peer.Result, [sharing.Parties]error) {

	var results [sharing.Parties]peer.Result
	var errs [sharing.Parties]error

	g := errgroup.Group{}
	for i := range c.Sessions {
		i := i
		g.Go(func() error {
			results[i], errs[i] = c.Sessions[i].Execute(ctx, reqs[i])
			return nil
		})
	}
	g.Wait()

	return results, errs
}

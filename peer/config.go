package peer

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/blake3"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/transport/tcp"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// ProtocolABY3 is the only supported protocol.
const ProtocolABY3 = "ABY3"

// AvgPolicy tells what an average reveals besides its result.
type AvgPolicy string

const (
	// RevealRowCounts reconstructs the total row count of each column, then
	// the total sum, and divides in the clear.
	RevealRowCounts AvgPolicy = "reveal-row-counts"
	// SecretRowCounts keeps the counts shared and divides under MPC. Only
	// whether a count is zero is revealed.
	SecretRowCounts AvgPolicy = "secret-row-counts"
)

// Defaults applied by WithDefaults.
const (
	DefaultReceiveTimeout = 10 * time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

// -----------------------------------------------------------------------------
// Configuration

// Configuration is everything a party needs to join a session. All parties
// must agree on Protocol, FracBits, AvgPolicy and Columns.
type Configuration struct {
	Protocol string        `yaml:"protocol"`
	Self     int           `yaml:"self"`
	Parties  []PartyConfig `yaml:"parties"`
	TLS      TLSConfig     `yaml:"tls"`

	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	Retry          RetryConfig   `yaml:"retry"`

	// FracBits is the fixed-point precision. Zero selects
	// sharing.DefaultFracBits.
	FracBits  uint      `yaml:"frac_bits"`
	AvgPolicy AvgPolicy `yaml:"avg_policy"`

	// Columns optionally names the agreed columns. When set, requests with a
	// different number of columns are rejected before any message is sent.
	Columns []string `yaml:"columns"`

	// Registerer receives the metrics of the session. Optional.
	Registerer prometheus.Registerer `yaml:"-"`
}

// PartyConfig locates one party.
type PartyConfig struct {
	ID      int    `yaml:"id"`
	Address string `yaml:"address"`
	// ServerName is the name in the party's certificate. Defaults to the
	// host of Address.
	ServerName string `yaml:"server_name"`
}

// TLSConfig holds the PEM files of the mutual TLS setup. All empty selects
// plain TCP.
type TLSConfig struct {
	RootCAPath string `yaml:"root_ca"`
	KeyPath    string `yaml:"key"`
	CertPath   string `yaml:"cert"`
}

// RetryConfig bounds the dial attempts.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// LoadConfiguration reads a YAML configuration file and applies the
// defaults.
func LoadConfiguration(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, xerrors.Errorf("read %s: %v: %w", path, err, ErrConfig)
	}

	conf := Configuration{}
	err = yaml.Unmarshal(buf, &conf)
	if err != nil {
		return Configuration{}, xerrors.Errorf("parse %s: %v: %w", path, err, ErrConfig)
	}

	return conf.WithDefaults(), nil
}

// WithDefaults returns a copy of the configuration where unset fields take
// their default value.
func (c Configuration) WithDefaults() Configuration {
	if c.Protocol == "" {
		c.Protocol = ProtocolABY3
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = DefaultInitialBackoff
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = DefaultMaxBackoff
	}
	if c.FracBits == 0 {
		c.FracBits = sharing.DefaultFracBits
	}
	if c.AvgPolicy == "" {
		c.AvgPolicy = RevealRowCounts
	}
	return c
}

// Validate checks the configuration. Every error wraps ErrConfig.
func (c Configuration) Validate() error {
	if !strings.EqualFold(c.Protocol, ProtocolABY3) {
		return xerrors.Errorf("unsupported protocol %q: %w", c.Protocol, ErrConfig)
	}

	if len(c.Parties) != sharing.Parties {
		return xerrors.Errorf("%d parties given, need %d: %w", len(c.Parties), sharing.Parties, ErrConfig)
	}
	seen := map[int]bool{}
	for _, p := range c.Parties {
		if p.ID < 0 || p.ID >= sharing.Parties || seen[p.ID] {
			return xerrors.Errorf("invalid or duplicate party id %d: %w", p.ID, ErrConfig)
		}
		seen[p.ID] = true
		if p.Address == "" {
			return xerrors.Errorf("party %d has no address: %w", p.ID, ErrConfig)
		}
	}
	if c.Self < 0 || c.Self >= sharing.Parties {
		return xerrors.Errorf("self index %d out of range: %w", c.Self, ErrConfig)
	}

	if c.ReceiveTimeout <= 0 || c.DialTimeout <= 0 {
		return xerrors.Errorf("timeouts must be positive: %w", ErrConfig)
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return xerrors.Errorf("invalid retry policy %+v: %w", c.Retry, ErrConfig)
	}

	_, err := sharing.NewEncoder(c.FracBits)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrConfig)
	}

	switch c.AvgPolicy {
	case RevealRowCounts, SecretRowCounts:
	default:
		return xerrors.Errorf("unknown avg policy %q: %w", c.AvgPolicy, ErrConfig)
	}

	if !c.TLS.Enabled() && !c.TLS.empty() {
		return xerrors.Errorf("root_ca, key and cert must be set together: %w", ErrConfig)
	}

	return nil
}

// Fingerprint hashes the parameters the parties must agree on.
func (c Configuration) Fingerprint() string {
	h := blake3.New()

	h.Write([]byte(strings.ToUpper(c.Protocol)))
	h.Write([]byte(fmt.Sprintf("|%d|%d|%s|%d", len(c.Parties), c.FracBits, c.AvgPolicy, len(c.Columns))))
	for _, col := range c.Columns {
		h.Write([]byte(fmt.Sprintf("|%q", col)))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Endpoints returns the endpoint of this party and those of its peers.
func (c Configuration) Endpoints() (transport.Endpoint, []transport.Endpoint) {
	var self transport.Endpoint
	peers := make([]transport.Endpoint, 0, len(c.Parties)-1)

	for _, p := range c.Parties {
		e := transport.Endpoint{ID: p.ID, Address: p.Address, ServerName: p.ServerName}
		if p.ID == c.Self {
			self = e
			continue
		}
		peers = append(peers, e)
	}
	return self, peers
}

// TCPOptions returns the options of the TCP transport, loading the TLS
// material when configured.
func (c Configuration) TCPOptions() (tcp.Options, error) {
	tlsConf, err := c.TLS.Load()
	if err != nil {
		return tcp.Options{}, err
	}

	return tcp.Options{
		TLS:         tlsConf,
		DialTimeout: c.DialTimeout,
		Retry: tcp.RetryPolicy{
			MaxAttempts:    c.Retry.MaxAttempts,
			InitialBackoff: c.Retry.InitialBackoff,
			MaxBackoff:     c.Retry.MaxBackoff,
		},
	}, nil
}

// -----------------------------------------------------------------------------
// TLS

// Enabled tells if all TLS files are set.
func (t TLSConfig) Enabled() bool {
	return t.RootCAPath != "" && t.KeyPath != "" && t.CertPath != ""
}

func (t TLSConfig) empty() bool {
	return t.RootCAPath == "" && t.KeyPath == "" && t.CertPath == ""
}

// Load builds the mutual TLS configuration. It returns nil when TLS is not
// configured.
func (t TLSConfig) Load() (*tls.Config, error) {
	if t.empty() {
		return nil, nil
	}
	if !t.Enabled() {
		return nil, xerrors.Errorf("root_ca, key and cert must be set together: %w", ErrConfig)
	}

	cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
	if err != nil {
		return nil, xerrors.Errorf("load key pair: %v: %w", err, ErrConfig)
	}

	caPEM, err := os.ReadFile(t.RootCAPath)
	if err != nil {
		return nil, xerrors.Errorf("read root CA: %v: %w", err, ErrConfig)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, xerrors.Errorf("no certificate found in %s: %w", t.RootCAPath, ErrConfig)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Package tcp implements the transport over TCP, secured with mutual TLS
// when a TLS configuration is given.
package tcp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const (
	maxFrameSize = 64 << 20
	queueSize    = 64
	helloTimeout = 5 * time.Second
)

// RetryPolicy bounds the dial attempts towards a peer. The delay between two
// attempts starts at InitialBackoff and doubles up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Options configures the TCP transport.
type Options struct {
	// TLS enables mutual TLS. A nil value selects plain TCP.
	TLS *tls.Config

	DialTimeout time.Duration
	Retry       RetryPolicy
}

// NewTCP returns a new TCP transport.
func NewTCP(opts Options) transport.Transport {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = 100 * time.Millisecond
	}
	if opts.Retry.MaxBackoff < opts.Retry.InitialBackoff {
		opts.Retry.MaxBackoff = opts.Retry.InitialBackoff
	}
	return &TCP{opts: opts}
}

// TCP implements a transport layer using TCP connections.
//
// - implements transport.Transport
type TCP struct {
	opts Options
}

// Connect implements transport.Transport. The party dials every peer with a
// lower ID and accepts every peer with a higher ID, so each pair shares
// exactly one connection.
func (t *TCP) Connect(ctx context.Context, self transport.Endpoint,
	peers []transport.Endpoint) (map[int]transport.Channel, error) {

	if t.opts.TLS == nil {
		log.Warn().Int("party", self.ID).
			Msg("TLS disabled: channels are neither authenticated nor encrypted (reduced trust)")
	}

	var mu sync.Mutex
	channels := map[int]transport.Channel{}
	addChannel := func(ch *Channel) {
		mu.Lock()
		channels[ch.peer] = ch
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	expected := map[int]bool{}
	for _, p := range peers {
		if p.ID > self.ID {
			expected[p.ID] = true
		}
	}

	if len(expected) > 0 {
		listener, err := net.Listen("tcp", self.Address)
		if err != nil {
			return nil, xerrors.Errorf("listen on %s: %v", self.Address, err)
		}
		defer listener.Close()

		// unblocks Accept once the group is done
		go func() {
			<-gctx.Done()
			listener.Close()
		}()

		g.Go(func() error {
			return t.acceptLoop(gctx, listener, self, expected, addChannel)
		})
	}

	for _, p := range peers {
		if p.ID >= self.ID {
			continue
		}
		p := p
		g.Go(func() error {
			ch, err := t.dial(gctx, self, p)
			if err != nil {
				return err
			}
			addChannel(ch)
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		for _, ch := range channels {
			ch.Close()
		}
		return nil, err
	}

	return channels, nil
}

func (t *TCP) acceptLoop(ctx context.Context, listener net.Listener, self transport.Endpoint,
	expected map[int]bool, addChannel func(*Channel)) error {

	for len(expected) > 0 {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return xerrors.Errorf("waiting for peers: %w", ctx.Err())
			}
			return xerrors.Errorf("accept: %v", err)
		}

		conn, err = t.serverHandshake(ctx, conn)
		if err != nil {
			return err
		}

		hello, err := readHello(conn)
		if err != nil {
			conn.Close()
			return xerrors.Errorf("hello from %s: %v: %w", conn.RemoteAddr(), err, transport.ErrHandshake)
		}
		id := hello.Source
		if !expected[id] || hello.Destination != self.ID {
			conn.Close()
			return xerrors.Errorf("unexpected party %d connecting as peer of %d: %w",
				id, hello.Destination, transport.ErrHandshake)
		}
		err = writeHello(conn, self.ID, id)
		if err != nil {
			conn.Close()
			return xerrors.Errorf("hello to %d: %v: %w", id, err, transport.ErrConnectionLost)
		}

		delete(expected, id)
		log.Debug().Int("party", self.ID).Int("peer", id).Msg("accepted peer")
		addChannel(newChannel(id, conn))
	}

	return nil
}

func (t *TCP) serverHandshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	if t.opts.TLS == nil {
		return conn, nil
	}

	tlsConn := tls.Server(conn, t.opts.TLS)
	hctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	err := tlsConn.HandshakeContext(hctx)
	if err != nil {
		conn.Close()
		return nil, xerrors.Errorf("tls from %s: %v: %w", conn.RemoteAddr(), err, transport.ErrHandshake)
	}
	return tlsConn, nil
}

// dial connects to a lower-ID peer, retrying transient failures with an
// exponential backoff. Authentication failures are returned at once.
func (t *TCP) dial(ctx context.Context, self, peer transport.Endpoint) (*Channel, error) {
	backoff := t.opts.Retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= t.opts.Retry.MaxAttempts; attempt++ {
		ch, err := t.dialOnce(ctx, self, peer)
		if err == nil {
			return ch, nil
		}
		if errors.Is(err, transport.ErrHandshake) {
			return nil, err
		}
		lastErr = err

		log.Debug().Int("party", self.ID).Int("peer", peer.ID).Int("attempt", attempt).
			Dur("backoff", backoff).Err(err).Msg("dial failed")

		if attempt == t.opts.Retry.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, xerrors.Errorf("dial %d: %w", peer.ID, ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if backoff > t.opts.Retry.MaxBackoff {
			backoff = t.opts.Retry.MaxBackoff
		}
	}

	return nil, xerrors.Errorf("dial %d at %s: %d attempts, last error: %v: %w",
		peer.ID, peer.Address, t.opts.Retry.MaxAttempts, lastErr, transport.TimeoutError(t.opts.DialTimeout))
}

func (t *TCP) dialOnce(ctx context.Context, self, peer transport.Endpoint) (*Channel, error) {
	dialer := net.Dialer{Timeout: t.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", peer.Address)
	if err != nil {
		return nil, err
	}

	if t.opts.TLS != nil {
		cfg := t.opts.TLS.Clone()
		cfg.ServerName = serverName(peer)

		tlsConn := tls.Client(conn, cfg)
		hctx, cancel := context.WithTimeout(ctx, helloTimeout)
		err = tlsConn.HandshakeContext(hctx)
		cancel()
		if err != nil {
			conn.Close()
			if isAuthFailure(err) {
				return nil, xerrors.Errorf("tls to %d: %v: %w", peer.ID, err, transport.ErrHandshake)
			}
			return nil, err
		}
		conn = tlsConn
	}

	err = writeHello(conn, self.ID, peer.ID)
	if err != nil {
		conn.Close()
		return nil, err
	}

	hello, err := readHello(conn)
	if err != nil {
		conn.Close()
		// with TLS 1.3 the server reports a rejected client certificate
		// only after the client finished its handshake
		if isAuthFailure(err) {
			return nil, xerrors.Errorf("tls to %d: %v: %w", peer.ID, err, transport.ErrHandshake)
		}
		return nil, err
	}
	if hello.Source != peer.ID || hello.Destination != self.ID {
		conn.Close()
		return nil, xerrors.Errorf("%s answered as party %d, expected %d: %w",
			peer.Address, hello.Source, peer.ID, transport.ErrHandshake)
	}

	log.Debug().Int("party", self.ID).Int("peer", peer.ID).Msg("connected to peer")
	return newChannel(peer.ID, conn), nil
}

func serverName(peer transport.Endpoint) string {
	if peer.ServerName != "" {
		return peer.ServerName
	}
	host, _, err := net.SplitHostPort(peer.Address)
	if err != nil {
		return peer.Address
	}
	return host
}

func isAuthFailure(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var alertErr tls.AlertError
	var headerErr tls.RecordHeaderError
	var authorityErr x509.UnknownAuthorityError
	var invalidErr x509.CertificateInvalidError
	var hostnameErr x509.HostnameError

	return errors.As(err, &verifyErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &headerErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &hostnameErr)
}

func writeHello(conn net.Conn, from, to int) error {
	header := transport.NewHeader(from, to, "")
	buf, err := transport.Packet{Header: &header}.Marshal()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(helloTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return writeFrame(conn, buf)
}

func readHello(conn net.Conn) (transport.Header, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	buf, err := readFrame(conn)
	if err != nil {
		return transport.Header{}, err
	}
	var pkt transport.Packet
	err = pkt.Unmarshal(buf)
	if err != nil {
		return transport.Header{}, err
	}
	if pkt.Header == nil {
		return transport.Header{}, xerrors.Errorf("hello without header")
	}
	return *pkt.Header, nil
}

func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var size [4]byte
	_, err := io.ReadFull(r, size[:])
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(size[:])
	if n > maxFrameSize {
		return nil, xerrors.Errorf("frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func newChannel(peer int, conn net.Conn) *Channel {
	ch := &Channel{
		peer:     peer,
		conn:     conn,
		incoming: make(chan transport.Packet, queueSize),
		closed:   make(chan struct{}),
		broken:   make(chan struct{}),
	}
	go ch.readLoop()
	return ch
}

// Channel is a framed connection to one peer.
//
// - implements transport.Channel
type Channel struct {
	peer int
	conn net.Conn

	wmu sync.Mutex

	incoming chan transport.Packet
	closed   chan struct{}
	once     sync.Once

	// broken is closed by the reader once err is set
	broken chan struct{}
	err    error
}

func (c *Channel) readLoop() {
	defer close(c.broken)

	for {
		buf, err := readFrame(c.conn)
		if err != nil {
			c.err = xerrors.Errorf("recv from %d: %v: %w", c.peer, err, transport.ErrConnectionLost)
			return
		}
		var pkt transport.Packet
		err = pkt.Unmarshal(buf)
		if err != nil {
			c.err = xerrors.Errorf("recv from %d: malformed packet: %v: %w", c.peer, err, transport.ErrConnectionLost)
			return
		}

		select {
		case c.incoming <- pkt:
		case <-c.closed:
			c.err = xerrors.Errorf("recv from %d: %w", c.peer, transport.ErrConnectionLost)
			return
		}
	}
}

// Peer implements transport.Channel
func (c *Channel) Peer() int {
	return c.peer
}

// Send implements transport.Channel
func (c *Channel) Send(pkt transport.Packet, timeout time.Duration) error {
	select {
	case <-c.closed:
		return xerrors.Errorf("send to %d: %w", c.peer, transport.ErrConnectionLost)
	default:
	}

	buf, err := pkt.Marshal()
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if timeout != 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}

	err = writeFrame(c.conn, buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return transport.TimeoutError(timeout)
	}
	if err != nil {
		return xerrors.Errorf("send to %d: %v: %w", c.peer, err, transport.ErrConnectionLost)
	}
	return nil
}

// Recv implements transport.Channel
func (c *Channel) Recv(timeout time.Duration) (transport.Packet, error) {
	var expired <-chan time.Time
	if timeout != 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case pkt := <-c.incoming:
		return pkt, nil
	case <-c.broken:
		select {
		case pkt := <-c.incoming:
			return pkt, nil
		default:
		}
		return transport.Packet{}, c.err
	case <-c.closed:
		return transport.Packet{}, xerrors.Errorf("recv from %d: %w", c.peer, transport.ErrConnectionLost)
	case <-expired:
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
}

// Close implements transport.Channel. It returns an error if already closed.
func (c *Channel) Close() error {
	err := xerrors.Errorf("channel to %d already closed", c.peer)
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

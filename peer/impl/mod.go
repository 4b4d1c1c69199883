package impl

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/peer/impl/circuits"
	"go.dedis.ch/mpcstats/sharing"
	"go.dedis.ch/mpcstats/transport"
	"golang.org/x/xerrors"
)

// maxRowCount bounds the row count a party may contribute to a column, so
// that the total stays positive in the ring.
const maxRowCount = 1 << 60

// NewSession validates the configuration, connects to the peers and
// establishes a session with them.
func NewSession(ctx context.Context, conf peer.Configuration, tr transport.Transport) (*Session, error) {
	conf = conf.WithDefaults()
	err := conf.Validate()
	if err != nil {
		return nil, err
	}
	enc, err := sharing.NewEncoder(conf.FracBits)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, peer.ErrConfig)
	}

	s := &Session{
		conf:    conf,
		party:   conf.Self,
		encoder: enc,
		mailbox: NewMailbox(),
		state:   Idle,
		metrics: newSessionMetrics(conf.Self, conf.Registerer),
		log:     log.With().Int("party", conf.Self).Logger(),
	}

	self, peers := conf.Endpoints()
	channels, err := tr.Connect(ctx, self, peers)
	if err != nil {
		return nil, xerrors.Errorf("failed to connect: %w", err)
	}

	tm := transport.NewMetrics(conf.Self, conf.Registerer)
	s.channels = make(map[int]transport.Channel, len(channels))
	for id, ch := range channels {
		s.channels[id] = transport.Instrument(ch, tm)
	}

	err = s.establish(ctx)
	if err != nil {
		s.closeChannels()
		return nil, err
	}

	daemonCtx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	for _, ch := range s.channels {
		s.ReceiveDaemon(daemonCtx, ch)
	}

	s.log.Info().Msgf("session established with fingerprint %s", conf.Fingerprint())
	return s, nil
}

// Session is a party's side of an established three-party session. Requests
// are executed one at a time.
//
// - implements peer.Executor
type Session struct {
	execMu sync.Mutex

	conf    peer.Configuration
	party   int
	id      string
	encoder sharing.Encoder

	channels map[int]transport.Channel
	mailbox  *Mailbox
	zero     *sharing.ZeroSharer
	seq      uint64

	stateMu sync.RWMutex
	state   State

	stop    context.CancelFunc
	wg      sync.WaitGroup
	closing sync.Once

	metrics sessionMetrics
	log     zerolog.Logger
}

// ID returns the session ID issued by party 0.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(to State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.state == to {
		return
	}
	if !canMove(s.state, to) {
		s.log.Error().Msgf("invalid transition %s -> %s", s.state, to)
		return
	}
	s.log.Debug().Msgf("state %s -> %s", s.state, to)
	s.state = to
}

// Execute implements peer.Executor.
func (s *Session) Execute(ctx context.Context, req peer.Request) (peer.Result, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.State() == Aborted {
		return peer.Result{}, xerrors.Errorf("session %s: %w", s.id, peer.ErrSessionAborted)
	}

	values, counts, err := s.validate(req)
	if err != nil {
		return peer.Result{}, err
	}

	s.seq++
	request := s.seq
	logger := s.log.With().Uint64("request", request).Str("op", string(req.Op)).Logger()

	s.mailbox.advance(request)
	err = s.zero.Rekey(namespace(s.id, request))
	if err != nil {
		return peer.Result{}, s.abort(request, 0, err)
	}

	comm := &roundComm{session: s, request: request, columns: len(values)}
	err = comm.agree(ctx, req.Op)
	if errors.Is(err, peer.ErrColumnMismatch) || errors.Is(err, peer.ErrInvalidInput) {
		// every party saw the same headers and rejects the request
		logger.Info().Err(err).Msg("request rejected")
		return peer.Result{}, err
	}
	if err != nil {
		logger.Error().Err(err).Msg("aborting before the first round")
		return peer.Result{}, s.abort(request, 0, err)
	}

	engine, err := circuits.NewEngine(s.party, comm, s.zero)
	if err != nil {
		return peer.Result{}, s.abort(request, 0, err)
	}
	engine.Observe(func(opening bool) {
		s.metrics.rounds.Inc()
		if opening {
			s.setState(Reconstructing)
		} else {
			s.setState(RoundInProgress)
		}
	})

	s.metrics.requests.Inc()
	s.setState(RoundInProgress)
	logger.Info().Msgf("executing over %d columns", len(values))

	res, err := s.run(ctx, engine, req.Op, values, counts)
	if errors.Is(err, peer.ErrDivisionByZero) {
		// every party saw the same opened counts, the session stays usable
		s.setState(Complete)
		logger.Info().Err(err).Msg("request rejected")
		return peer.Result{}, err
	}
	if err != nil {
		logger.Error().Err(err).Msgf("aborting in round %d", comm.current())
		return peer.Result{}, s.abort(request, comm.current(), err)
	}

	s.setState(Complete)
	logger.Info().Msgf("done in %d rounds", engine.Rounds())

	return peer.Result{Values: res, Rounds: engine.Rounds()}, nil
}

// validate checks the request before anything is sent and encodes it.
func (s *Session) validate(req peer.Request) ([]uint64, []uint64, error) {
	_, err := peer.ParseOp(string(req.Op))
	if err != nil {
		return nil, nil, err
	}
	if len(req.Values) == 0 {
		return nil, nil, xerrors.Errorf("no column given: %w", peer.ErrInvalidInput)
	}
	if len(s.conf.Columns) != 0 && len(req.Values) != len(s.conf.Columns) {
		return nil, nil, xerrors.Errorf("%d columns given, schema has %d: %w",
			len(req.Values), len(s.conf.Columns), peer.ErrColumnMismatch)
	}

	values, err := s.encoder.EncodeAll(req.Values)
	if err != nil {
		return nil, nil, xerrors.Errorf("%v: %w", err, peer.ErrInvalidInput)
	}

	if req.Op != peer.OpAvg {
		return values, nil, nil
	}

	if len(req.RowCounts) != len(req.Values) {
		return nil, nil, xerrors.Errorf("%d row counts for %d columns: %w",
			len(req.RowCounts), len(req.Values), peer.ErrColumnMismatch)
	}
	counts := make([]uint64, len(req.RowCounts))
	for i, c := range req.RowCounts {
		if c < 0 || c >= maxRowCount {
			return nil, nil, xerrors.Errorf("row count %d of column %d out of range: %w",
				c, i, peer.ErrInvalidInput)
		}
		counts[i] = uint64(c)
	}
	return values, counts, nil
}

func (s *Session) run(ctx context.Context, engine *circuits.Engine, op peer.Op,
	values, counts []uint64) ([]float64, error) {

	switch op {
	case peer.OpSum:
		res, err := engine.Sum(ctx, values)
		if err != nil {
			return nil, err
		}
		return s.encoder.DecodeAll(res), nil

	case peer.OpMax:
		res, err := engine.Max(ctx, values)
		if err != nil {
			return nil, err
		}
		return s.encoder.DecodeAll(res), nil

	case peer.OpMin:
		res, err := engine.Min(ctx, values)
		if err != nil {
			return nil, err
		}
		return s.encoder.DecodeAll(res), nil

	case peer.OpAvg:
		if s.conf.AvgPolicy == peer.SecretRowCounts {
			res, err := engine.SecretAvg(ctx, values, counts)
			if err != nil {
				return nil, err
			}
			return s.encoder.DecodeAll(res), nil
		}

		sums, rows, err := engine.RevealedAvg(ctx, values, counts)
		if err != nil {
			return nil, err
		}
		res := make([]float64, len(sums))
		for i := range sums {
			res[i] = s.encoder.Decode(sums[i]) / float64(rows[i])
		}
		return res, nil

	default:
		return nil, xerrors.Errorf("unknown operation %q: %w", op, peer.ErrInvalidInput)
	}
}

// abort moves the session to Aborted, closes its channels and returns the
// error reported to the caller.
func (s *Session) abort(request uint64, round int, cause error) error {
	s.setState(Aborted)
	s.metrics.aborts.Inc()
	s.shutdown()
	return peer.NewAbortError(request, round, cause)
}

// Close releases the session. Further requests fail with
// ErrSessionAborted.
func (s *Session) Close() error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.State() == Aborted {
		return nil
	}
	s.setState(Aborted)
	s.shutdown()
	s.log.Info().Msg("session closed")
	return nil
}

func (s *Session) shutdown() {
	s.closing.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.mailbox.fail(xerrors.Errorf("session closed: %w", peer.ErrSessionAborted))
		s.closeChannels()
		s.wg.Wait()
	})
}

func (s *Session) closeChannels() {
	for id, ch := range s.channels {
		err := ch.Close()
		if err != nil {
			s.log.Debug().Err(err).Msgf("closing channel to %d", id)
		}
	}
}

// namespace scopes the zero-sharing streams to one request.
func namespace(session string, request uint64) []byte {
	buf := make([]byte, 8, 8+len(session))
	binary.BigEndian.PutUint64(buf, request)
	return append(buf, session...)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/mpcstats/httpserver"
	"go.dedis.ch/mpcstats/peer"
	"go.dedis.ch/mpcstats/peer/impl"
	"go.dedis.ch/mpcstats/stats"
	"go.dedis.ch/mpcstats/transport/tcp"
	"golang.org/x/xerrors"
)

// party is a running party of the CLI.
type party struct {
	conf    peer.Configuration
	session *impl.Session
	stats   *stats.JointStatistics
	http    *httpserver.Server
}

// sessionView adapts a session to the HTTP server.
type sessionView struct {
	*impl.Session
}

func (v sessionView) State() fmt.Stringer {
	return v.Session.State()
}

// -----------------------------------------------------------------------------
// start party

func startParty(ctx context.Context, conf peer.Configuration, httpAddr string) (*party, error) {
	reg := prometheus.NewRegistry()
	conf.Registerer = reg

	opts, err := conf.TCPOptions()
	if err != nil {
		return nil, err
	}

	fmt.Println("##########################################")
	fmt.Println("######     Starting a MPC party     ######")
	fmt.Println("##########################################")
	fmt.Printf("Party %d, waiting for the others...\n", conf.Self)

	session, err := impl.NewSession(ctx, conf, tcp.NewTCP(opts))
	if err != nil {
		return nil, xerrors.Errorf("failed to start session: %w", err)
	}

	p := &party{
		conf:    conf,
		session: session,
		stats:   stats.New(session),
	}

	if httpAddr != "" {
		p.http = httpserver.NewServer(conf.Self, sessionView{session}, reg)
		err = p.http.Start(httpAddr)
		if err != nil {
			session.Close()
			return nil, err
		}
		fmt.Println("Status and metrics on: ", p.http.Addr())
	}

	fmt.Println("Session: ", session.ID())
	if !conf.TLS.Enabled() {
		fmt.Println("!! TLS is disabled, peers are not authenticated")
	}
	fmt.Println()

	return p, nil
}

// -----------------------------------------------------------------------------
// stop party

func (p *party) stop() error {
	if p.http != nil {
		err := p.http.Stop(context.Background())
		if err != nil {
			return err
		}
	}
	return p.session.Close()
}

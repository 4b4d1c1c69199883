package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.dedis.ch/mpcstats/peer"
	"golang.org/x/xerrors"
)

// Options are the flags shared by the party commands.
type Options struct {
	ConfigPath string
	HTTPAddr   string
}

// -----------------------------------------------------------------------------
// Start CMD

// StartCMD starts a party and prompts for operations until exit.
func StartCMD(opts Options) error {
	p, err := start(opts)
	if err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		exitParty(p)
	}()

	performActions(p)
	return p.stop()
}

// RunCMD starts a party, runs one operation and stops.
func RunCMD(opts Options, opName, columns, counts string) error {
	op, err := peer.ParseOp(opName)
	if err != nil {
		return err
	}

	p, err := start(opts)
	if err != nil {
		return err
	}

	err = runOp(context.Background(), p, op, columns, counts)
	if err != nil {
		p.stop()
		return err
	}
	return p.stop()
}

func start(opts Options) (*party, error) {
	conf, err := peer.LoadConfiguration(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return startParty(context.Background(), conf, opts.HTTPAddr)
}

// runOp runs one operation on the party's inputs and prints the result.
func runOp(ctx context.Context, p *party, op peer.Op, text, countText string) error {
	columns, err := parseColumns(text)
	if err != nil {
		return err
	}

	var values []float64
	switch op {
	case peer.OpMax:
		values, err = p.stats.Max(ctx, columns)
	case peer.OpMin:
		values, err = p.stats.Min(ctx, columns)
	case peer.OpSum:
		values, err = p.stats.Sum(ctx, columns)
	case peer.OpAvg:
		counts, perr := parseCounts(countText)
		if perr != nil {
			return perr
		}
		values, err = p.stats.Avg(ctx, columns, counts)
	default:
		err = xerrors.Errorf("unknown operation %q: %w", op, peer.ErrInvalidInput)
	}
	if err != nil {
		return err
	}

	printResult(os.Stdout, op, p.conf.Columns, values)
	return nil
}

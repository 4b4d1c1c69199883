package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"go.dedis.ch/mpcstats/peer"
)

// -----------------------------------------------------------------------------
// Party CMD Prompt

var actionOpts = []string{
	"📈 Max",
	"📉 Min",
	"➕ Sum",
	"➗ Avg",
	"🍃 Exit",
}

var actions = map[string]func(*party) error{
	actionOpts[0]: func(p *party) error { return askAndRun(p, peer.OpMax) },
	actionOpts[1]: func(p *party) error { return askAndRun(p, peer.OpMin) },
	actionOpts[2]: func(p *party) error { return askAndRun(p, peer.OpSum) },
	actionOpts[3]: func(p *party) error { return askAndRun(p, peer.OpAvg) },
	actionOpts[4]: exitParty,
}

// -----------------------------------------------------------------------------
// Perform actions

func performActions(p *party) {
	prompt := &survey.Select{
		Message: "What do you want to compute ?",
		Options: actionOpts,
	}

	var action string
	for {
		err := survey.AskOne(prompt, &action)
		if err != nil {
			printError(err)
			return
		}

		method := actions[action]
		err = method(p)
		if err != nil {
			printError(err)
		}
	}
}

// -----------------------------------------------------------------------------
// CMD Actions

func askAndRun(p *party, op peer.Op) error {
	message := "Values (rows separated by ',', columns by ';'):"
	if op == peer.OpAvg {
		message = "Partial sums (rows separated by ',', columns by ';'):"
	}

	text := ""
	err := survey.AskOne(&survey.Input{Message: message}, &text)
	if err != nil {
		return err
	}

	counts := ""
	if op == peer.OpAvg {
		err = survey.AskOne(&survey.Input{Message: "Row count of each partial sum:"}, &counts)
		if err != nil {
			return err
		}
	}

	return runOp(context.Background(), p, op, text, counts)
}

func exitParty(p *party) error {
	err := p.stop()
	if err != nil {
		return err
	}

	fmt.Println("bye 👋")
	os.Exit(0)
	return nil
}

func printError(err error) {
	fmt.Println("~~ERROR~~")
	fmt.Println(err)
}

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cli "go.dedis.ch/mpcstats/cmd"
)

func main() {
	var logLevel string

	command := &cobra.Command{
		Use:   "mpcstats",
		Short: "Joint statistics between three parties",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}
	command.PersistentFlags().StringVar(&logLevel, "log-level", "error", "zerolog level")

	addPartyCmd(command)
	addPromptCmd(command)

	err := command.Execute()
	if err != nil {
		panic(err)
	}
}

// addPartyCmd runs one operation as one party
func addPartyCmd(command *cobra.Command) {
	opts := cli.Options{}
	var op, columns, counts string

	partyCmd := &cobra.Command{
		Use:   "party",
		Short: "Run one operation as one party",
		Long: "Join the session described by the configuration, run one operation " +
			"on the local columns and print the joint result",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCMD(opts, op, columns, counts)
		},
	}
	partyCmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "party.yaml", "party configuration")
	partyCmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "serve status and metrics on this address")
	partyCmd.Flags().StringVarP(&op, "op", "o", "sum", "max, min, sum or avg")
	partyCmd.Flags().StringVar(&columns, "columns", "", "local rows, ',' between rows and ';' between columns")
	partyCmd.Flags().StringVar(&counts, "counts", "", "row counts of the partial sums, for avg")

	command.AddCommand(partyCmd)
}

// addPromptCmd starts a party with an interactive prompt
func addPromptCmd(command *cobra.Command) {
	opts := cli.Options{}

	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "Start a party and prompt for operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.StartCMD(opts)
		},
	}
	promptCmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "party.yaml", "party configuration")
	promptCmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "serve status and metrics on this address")

	command.AddCommand(promptCmd)
}

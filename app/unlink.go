package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/daemon"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/binding"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/logger"
)

func init() { //nolint: gochecknoinits
	unlinkCmd.Flags().StringVar(&unlinkIssuer, "issuer", "", "Platform issuer URL")
	unlinkCmd.Flags().StringVar(&unlinkSubject, "subject", "", "Platform subject of the identity")
	unlinkCmd.Flags().StringVar(
		&configPath,
		"config",
		"",
		"Path to the configuration directory (defaults to ./etc/)",
	)

	_ = unlinkCmd.MarkFlagRequired("issuer")  //nolint:errcheck
	_ = unlinkCmd.MarkFlagRequired("subject") //nolint:errcheck

	rootCmd.AddCommand(unlinkCmd)
}

var (
	unlinkIssuer  string
	unlinkSubject string

	// unlink only removes the binding; the account and its enrolments stay.
	// The identity resolves again on its next launch, for lti-managed
	// accounts back onto the same deterministic account.
	unlinkCmd = &cobra.Command{
		Use:   "unlink",
		Short: "Remove the account binding of a platform identity",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			if err := binding.Delete(db, unlinkIssuer, unlinkSubject); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "binding removed")

			return nil
		},
	}
)

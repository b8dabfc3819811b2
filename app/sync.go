package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/daemon"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/deployment"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/logger"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/nrps"
)

func init() { //nolint: gochecknoinits
	syncCmd.Flags().Uint64Var(&syncRegistrationID, "registration", 0, "Registration id to sync")
	syncCmd.Flags().StringVar(&syncDeploymentID, "deployment", "", "Platform deployment id")
	syncCmd.Flags().Uint64Var(&syncResourceID, "resource", 0, "Published resource id to attach members to")
	syncCmd.Flags().StringVar(&syncMembershipsURL, "url", "", "NRPS context memberships URL")
	syncCmd.Flags().StringVar(
		&configPath,
		"config",
		"",
		"Path to the configuration directory (defaults to ./etc/)",
	)

	_ = syncCmd.MarkFlagRequired("registration") //nolint:errcheck
	_ = syncCmd.MarkFlagRequired("deployment")   //nolint:errcheck
	_ = syncCmd.MarkFlagRequired("resource")     //nolint:errcheck
	_ = syncCmd.MarkFlagRequired("url")          //nolint:errcheck

	rootCmd.AddCommand(syncCmd)
}

var (
	syncRegistrationID uint64
	syncDeploymentID   string
	syncResourceID     uint64
	syncMembershipsURL string

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Sync the membership of a platform context into the local roster",
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

			reg, err := registration.GetByID(db, syncRegistrationID)
			if err != nil {
				return err
			}

			dep, err := deployment.Get(db, reg.ID, syncDeploymentID)
			if err != nil {
				return err
			}

			key, err := nrps.LoadPrivateKey(cfg.Tool.PrivateKeyPath)
			if err != nil {
				return err
			}

			client := nrps.NewClient(db, key, cfg.Tool.KeyID)

			written, err := client.Sync(context.Background(), reg, dep, syncResourceID, syncMembershipsURL)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "synced %d members\n", written)

			return nil
		},
	}
)

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/daemon"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/ltiuser"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/resourcelink"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/logger"
)

func init() { //nolint: gochecknoinits
	rosterCmd.Flags().Uint64Var(&rosterResourceID, "resource", 0, "Published resource id")
	rosterCmd.Flags().StringVar(
		&configPath,
		"config",
		"",
		"Path to the configuration directory (defaults to ./etc/)",
	)

	_ = rosterCmd.MarkFlagRequired("resource") //nolint:errcheck

	rootCmd.AddCommand(rosterCmd)
}

var (
	rosterResourceID uint64

	rosterCmd = &cobra.Command{
		Use:   "roster",
		Short: "List the platform users and placements of a published resource",
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

			links, err := resourcelink.ListByResource(db, rosterResourceID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "resource %d placed through %d resource links\n", rosterResourceID, len(links))

			users, err := ltiuser.ListByResource(db, rosterResourceID)
			if err != nil {
				return err
			}

			for _, u := range users {
				account := "-"
				if u.AccountID != nil {
					account = fmt.Sprintf("%d", *u.AccountID)
				}

				lastAccess := "-"
				if u.LastAccess != nil {
					lastAccess = u.LastAccess.Format("2006-01-02 15:04")
				}

				grade := "-"
				if u.LastGrade != nil {
					grade = fmt.Sprintf("%.2f", *u.LastGrade)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s\t%s\taccount %s\tlast access %s\tgrade %s\n",
					u.SourceID, u.FirstName, u.LastName, u.Email, account, lastAccess, grade)
			}

			return nil
		},
	}
)

package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/daemon"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/deployment"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/logger"
)

func init() { //nolint: gochecknoinits
	platformCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"",
		"Path to the configuration directory (defaults to ./etc/)",
	)

	platformAddCmd.Flags().StringVar(&platformName, "name", "", "Display name of the platform")
	platformAddCmd.Flags().StringVar(&platformIssuer, "issuer", "", "Platform issuer URL")
	platformAddCmd.Flags().StringVar(&platformClientID, "client-id", "", "Client id issued by the platform")
	platformAddCmd.Flags().StringVar(&platformAuthURL, "auth-url", "", "Platform OIDC authentication endpoint")
	platformAddCmd.Flags().StringVar(&platformJWKSURL, "jwks-url", "", "Platform public keyset endpoint")
	platformAddCmd.Flags().StringVar(&platformTokenURL, "token-url", "", "Platform access token endpoint")

	deploymentAddCmd.Flags().Uint64Var(&platformRegID, "registration", 0, "Registration id")
	deploymentAddCmd.Flags().StringVar(&platformDeploymentID, "deployment", "", "Platform deployment id")
	deploymentAddCmd.Flags().StringVar(&platformName, "name", "", "Display name of the deployment")

	platformDeleteCmd.Flags().Uint64Var(&platformRegID, "registration", 0, "Registration id")

	platformUpdateCmd.Flags().Uint64Var(&platformRegID, "registration", 0, "Registration id")
	platformUpdateCmd.Flags().StringVar(&platformAuthURL, "auth-url", "", "Platform OIDC authentication endpoint")
	platformUpdateCmd.Flags().StringVar(&platformJWKSURL, "jwks-url", "", "Platform public keyset endpoint")
	platformUpdateCmd.Flags().StringVar(&platformTokenURL, "token-url", "", "Platform access token endpoint")

	platformCmd.AddCommand(platformAddCmd, platformListCmd, platformUpdateCmd, platformDeleteCmd, deploymentAddCmd)
	rootCmd.AddCommand(platformCmd)
}

var (
	platformName         string
	platformIssuer       string
	platformClientID     string
	platformAuthURL      string
	platformJWKSURL      string
	platformTokenURL     string
	platformRegID        uint64
	platformDeploymentID string

	platformCmd = &cobra.Command{
		Use:   "platform",
		Short: "Manage platform registrations and deployments",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
	}

	platformAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Register a platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			reg, err := registration.Create(db, &models.Registration{
				Name:           platformName,
				Issuer:         platformIssuer,
				ClientID:       platformClientID,
				AuthRequestURL: platformAuthURL,
				JWKSURL:        platformJWKSURL,
				AccessTokenURL: platformTokenURL,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered platform %d (%s)\n", reg.ID, reg.Issuer)

			return nil
		},
	}

	platformListCmd = &cobra.Command{
		Use:   "list",
		Short: "List platform registrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			regs, err := registration.List(db)
			if err != nil {
				return err
			}

			for _, reg := range regs {
				deps, err := deployment.ListByRegistration(db, reg.ID)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%d deployments\n", reg.ID, reg.Issuer, reg.ClientID, len(deps))
			}

			return nil
		},
	}

	// update only touches the endpoint URLs; issuer and client id are
	// immutable once launches reference them
	platformUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update the endpoint URLs of a registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			reg, err := registration.UpdateEndpoints(db, platformRegID, platformAuthURL, platformJWKSURL, platformTokenURL)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated platform %d (%s)\n", reg.ID, reg.Issuer)

			return nil
		},
	}

	// delete cascades over deployments, contexts, resource links and lti
	// users, but never touches local accounts or published resources
	platformDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete a registration and everything launched through it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			if err := deployment.DeleteByRegistration(db, platformRegID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted registration %d\n", platformRegID)

			return nil
		},
	}

	deploymentAddCmd = &cobra.Command{
		Use:   "add-deployment",
		Short: "Add a deployment to a registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db := daemon.OpenDatabase(&cfg)

			dep, err := deployment.Create(db, platformRegID, platformDeploymentID, platformName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added deployment %d (%s)\n", dep.ID, dep.DeploymentID)

			return nil
		},
	}
)

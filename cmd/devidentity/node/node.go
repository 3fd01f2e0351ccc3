package node

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/utils"
	"github.com/fystack/devidentity/internal/node/startup"
	"github.com/fystack/devidentity/pkg/certificates"
)

var (
	baseDir           string
	legalName         string
	devMode           bool
	promptCredentials bool
)

// NewNodeCmd creates a new node command group
func NewNodeCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "node",
		Short: "Node commands",
		Long:  "Commands that inspect a node directory the way the node does at start-up",
	}

	cmd.AddCommand(newCheckCmd())

	return cmd
}

func newCheckCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "check",
		Short: "Validate the node identity",
		Long:  "Load the node keystore and truststore and check that the identity chains to the trusted root",
		RunE:  runCheck,
	}

	cmd.Flags().StringVarP(&baseDir, "base-dir", "d", ".", "Node base directory")
	cmd.Flags().StringVarP(&legalName, "name", "n", "", "Configured legal name of the node (required)")
	cmd.Flags().BoolVar(&devMode, "dev-mode", false, "Create a dev identity when none exists")
	cmd.Flags().BoolVar(&promptCredentials, "prompt-credentials", false, "Prompt for keystore passwords instead of using the dev passwords")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	name, err := utils.ParseName(legalName)
	if err != nil {
		return err
	}

	cfg := startup.DevConfig(baseDir, name, devMode)
	if cfg.KeyStorePassword, err = utils.PromptPasswordOr(promptCredentials, "node keystore password", cfg.KeyStorePassword); err != nil {
		return err
	}
	if cfg.KeyPassword, err = utils.PromptPasswordOr(promptCredentials, "identity key password", cfg.KeyPassword); err != nil {
		return err
	}
	if cfg.TrustStorePassword, err = utils.PromptPasswordOr(promptCredentials, "truststore password", cfg.TrustStorePassword); err != nil {
		return err
	}

	nodeIdentity, err := startup.LoadIdentity(cfg, utils.NewGenerator())
	if err != nil {
		return err
	}

	fmt.Println("Node identity is valid")
	utils.PrintParty(nodeIdentity.Party)
	for i, cert := range nodeIdentity.Chain {
		role := "-"
		if r, ok := certificates.RoleOf(cert); ok {
			role = r.String()
		}
		fmt.Printf("  [%d] %s (%s)\n", i, cert.Subject, role)
	}
	return nil
}

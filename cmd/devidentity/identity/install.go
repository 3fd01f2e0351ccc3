package identity

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/utils"
	"github.com/fystack/devidentity/pkg/registry"
)

var (
	nodeDir   string
	legalName string
)

// NewInstallIdentityCmd creates the identity install command
func NewInstallIdentityCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "install",
		Short: "Create a dev identity for a node",
		Long:  "Create a key pair and dev CA certificate for a node and write them to its node keystore and truststore",
		RunE:  runInstallIdentity,
	}

	cmd.Flags().StringVarP(&nodeDir, "node-dir", "d", "", "Node base directory (required)")
	cmd.Flags().StringVarP(&legalName, "name", "n", "", `Legal name, e.g. "O=Bank A, L=London, C=GB" (required)`)
	_ = cmd.MarkFlagRequired("node-dir")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runInstallIdentity(cmd *cobra.Command, args []string) error {
	name, err := utils.ParseName(legalName)
	if err != nil {
		return err
	}

	party, err := utils.NewGenerator().InstallSingleIdentity(nodeDir, name)
	if err != nil {
		return fmt.Errorf("failed to install identity: %w", err)
	}

	fmt.Printf("Installed identity in %s\n", nodeDir)
	utils.PrintParty(party)
	return utils.RegisterParty(party, registry.KindNode, []string{nodeDir})
}

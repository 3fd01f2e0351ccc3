package notary

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/utils"
	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/registry"
)

var (
	nodeDirs   []string
	sharedName string
	threshold  int
)

// NewNotaryCmd creates a new notary command group
func NewNotaryCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "notary",
		Short: "Distributed service identity commands",
		Long:  "Commands for provisioning one service identity shared by a cluster of nodes",
	}

	cmd.AddCommand(newCompositeCmd())
	cmd.AddCommand(newSingularCmd())

	return cmd
}

func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&nodeDirs, "node-dir", "d", nil, "Node base directory, repeat for every cluster member (required)")
	cmd.Flags().StringVarP(&sharedName, "name", "n", "", `Shared service name, e.g. "O=Notary Service, L=Zurich, C=CH" (required)`)
	_ = cmd.MarkFlagRequired("node-dir")
	_ = cmd.MarkFlagRequired("name")
}

func newCompositeCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "composite",
		Short: "Give every member its own key under a shared composite key",
		Long:  "Give every member its own key pair and certify the threshold composite key over all members under the shared name",
		RunE:  runComposite,
	}

	addClusterFlags(cmd)
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "Members needed to act for the service (defaults to notary_threshold from config)")

	return cmd
}

func newSingularCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "singular",
		Short: "Give every member the same key",
		Long:  "Copy one key pair and certificate to every member. Any single member can act for the service.",
		RunE:  runSingular,
	}

	addClusterFlags(cmd)

	return cmd
}

func runComposite(cmd *cobra.Command, args []string) error {
	name, err := utils.ParseName(sharedName)
	if err != nil {
		return err
	}
	resolved, err := resolveThreshold(cmd.Flags().Changed("threshold"), threshold)
	if err != nil {
		return err
	}

	party, err := utils.NewGenerator().InstallDistributedComposite(nodeDirs, name, resolved)
	if err != nil {
		return fmt.Errorf("failed to install composite identity: %w", err)
	}

	fmt.Printf("Installed composite identity in %d node directories\n", len(nodeDirs))
	utils.PrintParty(party)
	return utils.RegisterParty(party, registry.KindCompositeService, nodeDirs)
}

func runSingular(cmd *cobra.Command, args []string) error {
	name, err := utils.ParseName(sharedName)
	if err != nil {
		return err
	}

	fmt.Println("WARNING: every node receives the same private key.")
	party, err := utils.NewGenerator().InstallDistributedSingular(nodeDirs, name)
	if err != nil {
		return fmt.Errorf("failed to install singular identity: %w", err)
	}

	fmt.Printf("Installed singular identity in %d node directories\n", len(nodeDirs))
	utils.PrintParty(party)
	return utils.RegisterParty(party, registry.KindSingularService, nodeDirs)
}

// resolveThreshold falls back to the configured notary threshold when the flag was not given.
// An explicit value must be at least 1.
func resolveThreshold(changed bool, value int) (int, error) {
	if !changed {
		return config.NotaryThreshold(), nil
	}
	if value < 1 {
		return 0, fmt.Errorf("%w: --threshold %d must be at least 1", compositekey.ErrInvalidThreshold, value)
	}
	return value, nil
}

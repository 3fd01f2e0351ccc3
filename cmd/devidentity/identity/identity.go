package identity

import (
	"github.com/spf13/cobra"
)

// NewIdentityCmd creates a new identity command group
func NewIdentityCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "identity",
		Short: "Node identity commands",
		Long:  "Commands for provisioning the legal identity of a single node",
	}

	cmd.AddCommand(NewInstallIdentityCmd())

	return cmd
}

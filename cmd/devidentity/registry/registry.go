package registry

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/utils"
	"github.com/fystack/devidentity/pkg/registry"
)

var fingerprint string

// NewRegistryCmd creates a new registry command group
func NewRegistryCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "registry",
		Short: "Party registry commands",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered parties",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := open()
			if err != nil {
				return err
			}
			defer reg.Close()

			records, err := reg.List()
			if err != nil {
				return err
			}
			for _, record := range records {
				printRecord(record)
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "show",
		Short: "Show the party with a key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := open()
			if err != nil {
				return err
			}
			defer reg.Close()

			record, err := reg.FindByFingerprint(fingerprint)
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	cmd.Flags().StringVarP(&fingerprint, "fingerprint", "f", "", "Key fingerprint (required)")
	_ = cmd.MarkFlagRequired("fingerprint")
	return cmd
}

func open() (*registry.Registry, error) {
	reg, ok, err := utils.OpenRegistry()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("no registry configured, set registry.type to badger or consul")
	}
	return reg, nil
}

func printRecord(record *registry.Record) {
	fmt.Printf("%s  %-18s %s\n", record.ID, record.Kind, record.Name)
	fmt.Printf("    fingerprint: %s\n", record.Fingerprint)
	if record.Threshold > 0 {
		fmt.Printf("    threshold:   %d of %d\n", record.Threshold, len(record.Members))
	}
	for _, member := range record.Members {
		fmt.Printf("    member:      %s\n", member)
	}
	fmt.Printf("    created:     %s\n", record.CreatedAt.Format("2006-01-02 15:04:05"))
}

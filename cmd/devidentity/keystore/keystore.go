package keystore

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/utils"
	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/config"
	ks "github.com/fystack/devidentity/pkg/keystore"
)

var (
	storePath         string
	promptCredentials bool
	exportAlias       string
)

// NewKeystoreCmd creates a new keystore command group
func NewKeystoreCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "keystore",
		Short: "Keystore inspection commands",
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&storePath, "path", "p", "", "Path to the keystore file (required)")
	cmd.Flags().BoolVar(&promptCredentials, "prompt-credentials", false, "Prompt for the store password instead of using the dev password")
	_ = cmd.MarkFlagRequired("path")
}

func newListCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "list",
		Short: "List the entries of a keystore",
		RunE:  runList,
	}
	addStoreFlags(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "export",
		Short: "Print the certificate chain of an entry as PEM",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	cmd.Flags().StringVarP(&exportAlias, "alias", "a", config.NodeIdentityAlias, "Entry alias")
	return cmd
}

// devPassword guesses the dev store password from the file name.
func devPassword(path string) string {
	if strings.HasSuffix(path, config.TrustStoreFileName) {
		return config.DevTrustStorePassword
	}
	if strings.HasSuffix(path, config.DistributedServiceFileName) {
		return config.DevDistributedServiceStorePassword
	}
	return config.DevNodeKeyStorePassword
}

func openStore() (*ks.Store, error) {
	password, err := utils.PromptPasswordOr(promptCredentials, "keystore password", devPassword(storePath))
	if err != nil {
		return nil, err
	}
	return ks.Load(storePath, password)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	for _, alias := range store.Aliases() {
		entry, err := store.Entry(alias)
		if err != nil {
			return err
		}
		leaf := entry.Certificate()

		role := "-"
		if r, ok := certificates.RoleOf(leaf); ok {
			role = r.String()
		}
		fingerprint := "-"
		if pub, err := certificates.SubjectPublicKey(leaf); err == nil {
			if fp, err := compositekey.Fingerprint(pub); err == nil {
				fingerprint = fp
			}
		}

		fmt.Printf("%s\n", alias)
		fmt.Printf("  type:        %s\n", entry.Type)
		fmt.Printf("  subject:     %s\n", leaf.Subject)
		fmt.Printf("  issuer:      %s\n", leaf.Issuer)
		fmt.Printf("  role:        %s\n", role)
		fmt.Printf("  fingerprint: %s\n", fingerprint)
		fmt.Printf("  chain:       %d certificates\n", len(entry.Chain))
		fmt.Printf("  not after:   %s\n", leaf.NotAfter.Format("2006-01-02"))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	entry, err := store.Entry(exportAlias)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(certificates.EncodePEMChain(entry.Chain))
	return err
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fystack/devidentity/cmd/devidentity/identity"
	"github.com/fystack/devidentity/cmd/devidentity/keystore"
	"github.com/fystack/devidentity/cmd/devidentity/node"
	"github.com/fystack/devidentity/cmd/devidentity/notary"
	"github.com/fystack/devidentity/cmd/devidentity/registry"
	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/logger"
)

const (
	// Version information
	VERSION = "0.1.0"
)

var (
	configFile string
	debug      bool
)

func main() {
	rootCmd.AddCommand(identity.NewIdentityCmd())
	rootCmd.AddCommand(notary.NewNotaryCmd())
	rootCmd.AddCommand(node.NewNodeCmd())
	rootCmd.AddCommand(keystore.NewKeystoreCmd())
	rootCmd.AddCommand(registry.NewRegistryCmd())
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "devidentity",
	Short:         "Development identity provisioning",
	Long:          "Provision development node identities, distributed service identities and their keystores",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.SetEnvConfigPath(configFile)
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger.Init(cfg.Environment, debug)
		if cfg.Environment == config.Production {
			logger.Warn("Dev identities use publicly known CA keys and passwords, do not deploy them to production")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display detailed version information",
	Long:  "Display detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devidentity version %s\n", VERSION)
	},
}

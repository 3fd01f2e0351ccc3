// Package startup holds the checks a node runs on its certificates directory before it joins the network.
package startup

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/identity"
	"github.com/fystack/devidentity/pkg/keystore"
	"github.com/fystack/devidentity/pkg/logger"
	"github.com/fystack/devidentity/pkg/x500"
)

var (
	ErrIdentityCertificateNotFound = errors.New("identity certificate not found")
	ErrLegalNameMismatch           = errors.New("identity certificate subject does not match the configured legal name")
)

type Config struct {
	BaseDirectory string
	LegalName     x500.Name
	// DevMode provisions a dev identity when the node has none.
	DevMode bool

	KeyStorePassword   string
	KeyPassword        string
	TrustStorePassword string
}

// DevConfig returns a config using the dev keystore passwords.
func DevConfig(baseDirectory string, legalName x500.Name, devMode bool) Config {
	return Config{
		BaseDirectory:      baseDirectory,
		LegalName:          legalName,
		DevMode:            devMode,
		KeyStorePassword:   config.DevNodeKeyStorePassword,
		KeyPassword:        config.DevKeyEntryPassword,
		TrustStorePassword: config.DevTrustStorePassword,
	}
}

// NodeIdentity is the validated identity a node starts with.
type NodeIdentity struct {
	Party     *identity.Party
	Signer    crypto.Signer
	Chain     []*x509.Certificate
	TrustRoot *x509.Certificate
}

// LoadIdentity opens the node keystore and truststore under cfg.BaseDirectory and checks that the identity
// chain leads to the trusted root and names cfg.LegalName. In dev mode a missing identity is created with
// generator first, protected with the passwords from cfg; a nil generator means identity.NewDevGenerator.
func LoadIdentity(cfg Config, generator *identity.Generator) (*NodeIdentity, error) {
	keyStorePath, err := identity.KeystorePath(cfg.BaseDirectory, config.NodeKeyStoreFileName)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(keyStorePath); errors.Is(err, fs.ErrNotExist) {
		if !cfg.DevMode {
			return nil, fmt.Errorf("%w: %s does not exist, copy the identity from an existing node or start in dev mode",
				ErrIdentityCertificateNotFound, keyStorePath)
		}
		if generator == nil {
			generator = identity.NewDevGenerator()
		}
		dev := *generator
		dev.NodeStorePassword = cfg.KeyStorePassword
		dev.KeyEntryPassword = cfg.KeyPassword
		dev.TrustStorePassword = cfg.TrustStorePassword
		logger.Info("No node keystore found, creating dev identity", "path", keyStorePath, "name", cfg.LegalName.String())
		if _, err := dev.InstallSingleIdentity(cfg.BaseDirectory, cfg.LegalName); err != nil {
			return nil, fmt.Errorf("failed to create dev identity: %w", err)
		}
	}

	nodeStore, err := keystore.Load(keyStorePath, cfg.KeyStorePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open node keystore: %w", err)
	}
	entry, err := nodeStore.Entry(config.NodeIdentityAlias)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityCertificateNotFound, err)
	}

	root, err := loadTrustRoot(cfg)
	if err != nil {
		return nil, err
	}

	if err := certificates.VerifyChain(entry.Chain, root); err != nil {
		return nil, fmt.Errorf("node identity %s: %w", config.NodeIdentityAlias, err)
	}

	leaf := entry.Certificate()
	subject, err := x500.FromPKIX(leaf.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLegalNameMismatch, err)
	}
	if subject != cfg.LegalName {
		return nil, fmt.Errorf("%w: certificate names %q, configured %q", ErrLegalNameMismatch, subject, cfg.LegalName)
	}

	signer, err := entry.PrivateKey(cfg.KeyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to recover node identity key: %w", err)
	}
	pub, err := certificates.SubjectPublicKey(leaf)
	if err != nil {
		return nil, err
	}

	logger.Info("Node identity loaded", "name", subject.String(), "issuer", leaf.Issuer.String())
	return &NodeIdentity{
		Party:     &identity.Party{Name: subject, Key: pub},
		Signer:    signer,
		Chain:     entry.Chain,
		TrustRoot: root,
	}, nil
}

func loadTrustRoot(cfg Config) (*x509.Certificate, error) {
	path, err := identity.KeystorePath(cfg.BaseDirectory, config.TrustStoreFileName)
	if err != nil {
		return nil, err
	}
	trustStore, err := keystore.Load(path, cfg.TrustStorePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open truststore: %w", err)
	}
	entry, err := trustStore.Entry(config.TrustedRootAlias)
	if err != nil {
		return nil, fmt.Errorf("truststore has no root: %w", err)
	}
	return entry.Certificate(), nil
}

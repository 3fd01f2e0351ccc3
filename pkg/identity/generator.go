// Package identity provisions development identities into node directories.
//
// Every entry point is synchronous. A call that spans several node directories writes them in order and
// stops at the first failure; directories already written stay written. Each write replaces only the aliases
// it owns and the files are replaced atomically, so a failed batch can simply be run again.
package identity

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/devca"
	"github.com/fystack/devidentity/pkg/filesystem"
	"github.com/fystack/devidentity/pkg/keystore"
	"github.com/fystack/devidentity/pkg/logger"
	"github.com/fystack/devidentity/pkg/x500"
)

var ErrEmptyNodeSet = errors.New("at least one node directory is required")

// Generator issues dev identities signed by the bundled intermediate CA and writes them to node keystores.
type Generator struct {
	// NodeStorePassword protects nodekeystore.ks.
	NodeStorePassword string
	// KeyEntryPassword protects each private key entry.
	KeyEntryPassword string
	// TrustStorePassword protects truststore.ks.
	TrustStorePassword string
	// DistributedStorePassword protects distributedService.ks.
	DistributedStorePassword string

	workFactor int
	bundle     *devca.Bundle
}

type Option func(*Generator)

// WithWorkFactor sets the scrypt work factor of written keystores.
func WithWorkFactor(logN int) Option {
	return func(g *Generator) {
		g.workFactor = logN
	}
}

// WithBundle replaces the bundled dev CA.
func WithBundle(bundle *devca.Bundle) Option {
	return func(g *Generator) {
		g.bundle = bundle
	}
}

// NewDevGenerator returns a generator using the dev passwords from package config.
func NewDevGenerator(opts ...Option) *Generator {
	g := &Generator{
		NodeStorePassword:        config.DevNodeKeyStorePassword,
		KeyEntryPassword:         config.DevKeyEntryPassword,
		TrustStorePassword:       config.DevTrustStorePassword,
		DistributedStorePassword: config.DevDistributedServiceStorePassword,
		workFactor:               keystore.DefaultWorkFactor,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// KeystorePath returns the location of a keystore file inside a node directory.
func KeystorePath(nodeDir, fileName string) (string, error) {
	return filesystem.SafePath(filepath.Join(nodeDir, config.CertificatesDirName), fileName)
}

func (g *Generator) trustBundle() (*devca.Bundle, error) {
	if g.bundle != nil {
		return g.bundle, nil
	}
	return devca.Load()
}

func (g *Generator) keystoreOptions() []keystore.Option {
	return []keystore.Option{keystore.WithWorkFactor(g.workFactor)}
}

// InstallSingleIdentity creates a key pair for legalName, certifies it under the dev intermediate CA and
// stores it in the node keystore of nodeDir. The dev root is written to the node truststore.
func (g *Generator) InstallSingleIdentity(nodeDir string, legalName x500.Name) (*Party, error) {
	bundle, err := g.trustBundle()
	if err != nil {
		return nil, err
	}

	pub, priv, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	defer clear(priv)

	chain, err := issueChain(bundle, certificates.RoleLegalIdentity, legalName, pub)
	if err != nil {
		return nil, err
	}

	path, err := KeystorePath(nodeDir, config.NodeKeyStoreFileName)
	if err != nil {
		return nil, err
	}
	err = keystore.Provision(path, g.NodeStorePassword, g.KeyEntryPassword, config.NodeIdentityAlias, priv, chain, g.keystoreOptions()...)
	if err != nil {
		return nil, err
	}

	trustPath, err := KeystorePath(nodeDir, config.TrustStoreFileName)
	if err != nil {
		return nil, err
	}
	err = keystore.Provision(trustPath, g.TrustStorePassword, "", config.TrustedRootAlias, nil, []*x509.Certificate{bundle.Root}, g.keystoreOptions()...)
	if err != nil {
		return nil, err
	}

	party := &Party{Name: legalName, Key: pub}
	logger.Info("Installed node identity", "node_dir", nodeDir, "party", party.String())
	return party, nil
}

// InstallDistributedComposite gives every node in nodeDirs its own key pair and certifies both that key and
// the composite key over all of them under sharedName. A threshold of zero means unspecified and selects
// config.DefaultNotaryThreshold; a negative threshold is rejected before anything is written.
func (g *Generator) InstallDistributedComposite(nodeDirs []string, sharedName x500.Name, threshold int) (*Party, error) {
	if len(nodeDirs) == 0 {
		return nil, ErrEmptyNodeSet
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold %d must be at least 1", compositekey.ErrInvalidThreshold, threshold)
	}
	if threshold == 0 {
		logger.Warn("No threshold given for composite identity, any single member can act for it",
			"name", sharedName.String(),
			"threshold", config.DefaultNotaryThreshold,
		)
		threshold = config.DefaultNotaryThreshold
	}

	bundle, err := g.trustBundle()
	if err != nil {
		return nil, err
	}

	pubs := make([]crypto.PublicKey, 0, len(nodeDirs))
	privs := make([]ed25519.PrivateKey, 0, len(nodeDirs))
	defer func() {
		lo.ForEach(privs, func(priv ed25519.PrivateKey, _ int) { clear(priv) })
	}()
	for range nodeDirs {
		pub, priv, err := newKeyPair()
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
		privs = append(privs, priv)
	}

	composite, err := compositekey.NewBuilder().AddKeys(pubs...).Build(threshold)
	if err != nil {
		return nil, err
	}

	for i, nodeDir := range nodeDirs {
		individualChain, err := issueChain(bundle, certificates.RoleServiceIdentity, sharedName, pubs[i])
		if err != nil {
			return nil, err
		}
		compositeChain, err := issueChain(bundle, certificates.RoleServiceIdentity, sharedName, composite)
		if err != nil {
			return nil, err
		}

		err = g.writeDistributedStore(nodeDir, func(store *keystore.Store) error {
			if err := store.SetKeyEntry(config.DistributedNotaryPrivateAlias, privs[i], g.KeyEntryPassword, individualChain); err != nil {
				return err
			}
			return store.SetCertificateEntry(config.DistributedNotaryCompositeAlias, compositeChain)
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("Provisioned composite identity member", "node_dir", nodeDir, "member", i)
	}

	party := &Party{Name: sharedName, Key: composite}
	logger.Info("Installed composite distributed identity",
		"party", party.String(),
		"members", len(nodeDirs),
		"threshold", threshold,
	)
	return party, nil
}

// InstallDistributedSingular writes one shared key pair and certificate to every node in nodeDirs. Every
// node holds the same private key.
func (g *Generator) InstallDistributedSingular(nodeDirs []string, sharedName x500.Name) (*Party, error) {
	if len(nodeDirs) == 0 {
		return nil, ErrEmptyNodeSet
	}

	bundle, err := g.trustBundle()
	if err != nil {
		return nil, err
	}

	pub, priv, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	defer clear(priv)

	chain, err := issueChain(bundle, certificates.RoleServiceIdentity, sharedName, pub)
	if err != nil {
		return nil, err
	}

	for _, nodeDir := range nodeDirs {
		err := g.writeDistributedStore(nodeDir, func(store *keystore.Store) error {
			return store.SetKeyEntry(config.DistributedNotaryPrivateAlias, priv, g.KeyEntryPassword, chain)
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("Provisioned singular identity member", "node_dir", nodeDir)
	}

	party := &Party{Name: sharedName, Key: pub}
	logger.Info("Installed singular distributed identity", "party", party.String(), "members", len(nodeDirs))
	return party, nil
}

func (g *Generator) writeDistributedStore(nodeDir string, update func(store *keystore.Store) error) error {
	path, err := KeystorePath(nodeDir, config.DistributedServiceFileName)
	if err != nil {
		return err
	}
	store, err := keystore.LoadOrCreate(path, g.DistributedStorePassword, g.keystoreOptions()...)
	if err != nil {
		return err
	}
	if err := update(store); err != nil {
		return err
	}
	return store.Save()
}

func newKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}
	return pub, priv, nil
}

func issueChain(bundle *devca.Bundle, role certificates.Role, name x500.Name, pub crypto.PublicKey) ([]*x509.Certificate, error) {
	leaf, err := bundle.Intermediate.Issue(role, name, pub)
	if err != nil {
		return nil, err
	}
	return append([]*x509.Certificate{leaf}, bundle.Chain()...), nil
}

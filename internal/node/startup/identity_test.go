package startup

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/identity"
	"github.com/fystack/devidentity/pkg/keystore"
	"github.com/fystack/devidentity/pkg/x500"
)

var bankA = x500.MustParse("O=Bank A, L=London, C=GB")

func newGenerator() *identity.Generator {
	return identity.NewDevGenerator(identity.WithWorkFactor(10))
}

func withPasswords(cfg Config, storePassword, keyPassword string) Config {
	cfg.KeyStorePassword = storePassword
	cfg.KeyPassword = keyPassword
	cfg.TrustStorePassword = storePassword
	return cfg
}

func TestLoadIdentity_Scenario(t *testing.T) {
	baseDir := t.TempDir()
	cfg := withPasswords(DevConfig(baseDir, bankA, false), "password", "keypassword")

	_, err := LoadIdentity(cfg, nil)
	require.ErrorIs(t, err, ErrIdentityCertificateNotFound)
	assert.Contains(t, err.Error(), "identity certificate not found")

	generator := newGenerator()
	generator.NodeStorePassword = cfg.KeyStorePassword
	generator.KeyEntryPassword = cfg.KeyPassword
	generator.TrustStorePassword = cfg.TrustStorePassword
	party, err := generator.InstallSingleIdentity(baseDir, bankA)
	require.NoError(t, err)

	loaded, err := LoadIdentity(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, bankA, loaded.Party.Name)
	assert.True(t, party.Key.(ed25519.PublicKey).Equal(loaded.Party.Key))
	assert.True(t, party.Key.(ed25519.PublicKey).Equal(loaded.Signer.Public()))
	assert.Len(t, loaded.Chain, 3)

	// replace the identity with one rooted at an unrelated self-signed CA
	rogue, err := certificates.NewSelfSignedCA(certificates.CABuilderOptions{Subject: pkix.Name{CommonName: "Rogue Root"}})
	require.NoError(t, err)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	leaf, err := rogue.Issue(certificates.RoleLegalIdentity, bankA, pub)
	require.NoError(t, err)

	path, err := identity.KeystorePath(baseDir, config.NodeKeyStoreFileName)
	require.NoError(t, err)
	require.NoError(t, keystore.Provision(path, cfg.KeyStorePassword, cfg.KeyPassword,
		config.NodeIdentityAlias, priv, []*x509.Certificate{leaf, rogue.Cert}, keystore.WithWorkFactor(10)))

	_, err = LoadIdentity(cfg, nil)
	require.ErrorIs(t, err, certificates.ErrUntrustedChain)
	assert.NotErrorIs(t, err, ErrLegalNameMismatch)
	assert.NotErrorIs(t, err, ErrIdentityCertificateNotFound)
	assert.Contains(t, err.Error(), "does not chain to the trusted root")
}

func TestLoadIdentity_DevModeProvisions(t *testing.T) {
	baseDir := t.TempDir()

	loaded, err := LoadIdentity(DevConfig(baseDir, bankA, true), newGenerator())
	require.NoError(t, err)
	assert.Equal(t, bankA, loaded.Party.Name)

	again, err := LoadIdentity(DevConfig(baseDir, bankA, true), newGenerator())
	require.NoError(t, err)
	assert.True(t, loaded.Party.Key.(ed25519.PublicKey).Equal(again.Party.Key))
}

func TestLoadIdentity_DevModeUsesConfiguredPasswords(t *testing.T) {
	baseDir := t.TempDir()
	cfg := withPasswords(DevConfig(baseDir, bankA, true), "password", "keypassword")
	generator := newGenerator()

	loaded, err := LoadIdentity(cfg, generator)
	require.NoError(t, err)
	assert.Equal(t, bankA, loaded.Party.Name)
	assert.Equal(t, config.DevNodeKeyStorePassword, generator.NodeStorePassword)

	again, err := LoadIdentity(cfg, nil)
	require.NoError(t, err)
	assert.True(t, loaded.Party.Key.(ed25519.PublicKey).Equal(again.Party.Key))

	_, err = LoadIdentity(DevConfig(baseDir, bankA, true), nil)
	assert.ErrorIs(t, err, keystore.ErrKeystoreFormat)
}

func TestLoadIdentity_LegalNameMismatch(t *testing.T) {
	baseDir := t.TempDir()
	_, err := newGenerator().InstallSingleIdentity(baseDir, bankA)
	require.NoError(t, err)

	_, err = LoadIdentity(DevConfig(baseDir, x500.MustParse("O=Bank B, L=Paris, C=FR"), false), nil)
	assert.ErrorIs(t, err, ErrLegalNameMismatch)
}

func TestLoadIdentity_WrongPassword(t *testing.T) {
	baseDir := t.TempDir()
	_, err := newGenerator().InstallSingleIdentity(baseDir, bankA)
	require.NoError(t, err)

	cfg := DevConfig(baseDir, bankA, false)
	cfg.KeyStorePassword = "wrong"
	_, err = LoadIdentity(cfg, nil)
	assert.ErrorIs(t, err, keystore.ErrKeystoreFormat)

	cfg = DevConfig(baseDir, bankA, false)
	cfg.KeyPassword = "wrong"
	_, err = LoadIdentity(cfg, nil)
	assert.ErrorIs(t, err, keystore.ErrKeystoreFormat)
}

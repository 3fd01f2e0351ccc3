package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/x500"
)

const (
	storePassword = "store-pass"
	keyPassword   = "key-pass"
	testWork      = 10
)

type fixture struct {
	root  *certificates.CA
	key   ed25519.PrivateKey
	chain []*x509.Certificate
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root, err := certificates.NewSelfSignedCA(certificates.CABuilderOptions{Subject: pkix.Name{CommonName: "root"}})
	require.NoError(t, err)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	leaf, err := root.Issue(certificates.RoleLegalIdentity, x500.MustParse("O=Bank A, L=London, C=GB"), pub)
	require.NoError(t, err)

	return fixture{root: root, key: priv, chain: []*x509.Certificate{leaf, root.Cert}}
}

func storePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "certificates", "nodekeystore.ks")
}

func TestProvision_KeyEntryRoundTrip(t *testing.T) {
	f := newFixture(t)
	path := storePath(t)

	require.NoError(t, Provision(path, storePassword, keyPassword, "identity", f.key, f.chain, WithWorkFactor(testWork)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	store, err := Load(path, storePassword)
	require.NoError(t, err)
	entry, err := store.Entry("identity")
	require.NoError(t, err)

	assert.Equal(t, PrivateKeyEntry, entry.Type)
	require.Len(t, entry.Chain, 2)
	assert.True(t, entry.Chain[0].Equal(f.chain[0]))
	assert.True(t, entry.Chain[1].Equal(f.chain[1]))

	key, err := entry.PrivateKey(keyPassword)
	require.NoError(t, err)
	assert.True(t, f.key.Equal(key))
}

func TestProvision_CertificateEntry(t *testing.T) {
	f := newFixture(t)
	path := storePath(t)

	require.NoError(t, Provision(path, storePassword, "", "composite", nil, f.chain, WithWorkFactor(testWork)))

	store, err := Load(path, storePassword)
	require.NoError(t, err)
	entry, err := store.Entry("composite")
	require.NoError(t, err)
	assert.Equal(t, CertificateEntry, entry.Type)
	assert.True(t, entry.Certificate().Equal(f.chain[0]))

	_, err = entry.PrivateKey(keyPassword)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestProvision_ReplacesAliasKeepsOthers(t *testing.T) {
	first := newFixture(t)
	second := newFixture(t)
	path := storePath(t)

	require.NoError(t, Provision(path, storePassword, keyPassword, "identity", first.key, first.chain, WithWorkFactor(testWork)))
	require.NoError(t, Provision(path, storePassword, "", "root", nil, first.chain[1:], WithWorkFactor(testWork)))
	require.NoError(t, Provision(path, storePassword, keyPassword, "identity", second.key, second.chain, WithWorkFactor(testWork)))

	store, err := Load(path, storePassword)
	require.NoError(t, err)
	assert.Equal(t, []string{"identity", "root"}, store.Aliases())

	entry, err := store.Entry("identity")
	require.NoError(t, err)
	key, err := entry.PrivateKey(keyPassword)
	require.NoError(t, err)
	assert.True(t, second.key.Equal(key))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoad_WrongPasswords(t *testing.T) {
	f := newFixture(t)
	path := storePath(t)
	require.NoError(t, Provision(path, storePassword, keyPassword, "identity", f.key, f.chain, WithWorkFactor(testWork)))

	_, err := Load(path, "wrong")
	assert.ErrorIs(t, err, ErrKeystoreFormat)
	assert.Contains(t, err.Error(), "password was incorrect")

	store, err := Load(path, storePassword)
	require.NoError(t, err)
	entry, err := store.Entry("identity")
	require.NoError(t, err)
	_, err = entry.PrivateKey("wrong")
	assert.ErrorIs(t, err, ErrKeystoreFormat)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(storePath(t), storePassword)
	assert.ErrorIs(t, err, ErrKeystoreIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	store, err := LoadOrCreate(storePath(t), storePassword)
	require.NoError(t, err)
	assert.Empty(t, store.Aliases())
}

func TestLoad_Corrupt(t *testing.T) {
	path := storePath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("not a keystore"), 0o600))

	_, err := Load(path, storePassword)
	assert.ErrorIs(t, err, ErrKeystoreFormat)
}

func TestLoad_UnknownVersion(t *testing.T) {
	path := storePath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	data, err := seal([]byte(`{"version":2,"entries":{}}`), storePassword, testWork)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path, storePassword)
	assert.ErrorIs(t, err, ErrKeystoreFormat)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestSetKeyEntry_Rejects(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	store, err := LoadOrCreate(storePath(t), storePassword, WithWorkFactor(testWork))
	require.NoError(t, err)

	tests := []struct {
		name     string
		alias    string
		key      ed25519.PrivateKey
		password string
		chain    []*x509.Certificate
	}{
		{name: "empty alias", alias: "", key: f.key, password: keyPassword, chain: f.chain},
		{name: "empty chain", alias: "identity", key: f.key, password: keyPassword, chain: nil},
		{name: "nil certificate", alias: "identity", key: f.key, password: keyPassword, chain: []*x509.Certificate{f.chain[0], nil}},
		{name: "key mismatch", alias: "identity", key: other.key, password: keyPassword, chain: f.chain},
		{name: "empty key password", alias: "identity", key: f.key, password: "", chain: f.chain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.SetKeyEntry(tt.alias, tt.key, tt.password, tt.chain)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
	assert.Empty(t, store.Aliases())
}

func TestSave_IOError(t *testing.T) {
	f := newFixture(t)
	path := storePath(t)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o700))

	store, err := LoadOrCreate(filepath.Join(t.TempDir(), "fresh.ks"), storePassword, WithWorkFactor(testWork))
	require.NoError(t, err)
	store.path = path
	require.NoError(t, store.SetCertificateEntry("root", f.chain[1:]))

	err = store.Save()
	assert.ErrorIs(t, err, ErrKeystoreIO)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	store, err := LoadOrCreate(storePath(t), storePassword, WithWorkFactor(testWork))
	require.NoError(t, err)
	require.NoError(t, store.SetCertificateEntry("root", f.chain[1:]))

	assert.True(t, store.Contains("root"))
	assert.True(t, store.Delete("root"))
	assert.False(t, store.Delete("root"))

	_, err = store.Entry("root")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

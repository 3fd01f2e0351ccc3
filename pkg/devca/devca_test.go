package devca

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/x500"
)

func TestLoad(t *testing.T) {
	bundle, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Dev Root CA", bundle.Root.Subject.CommonName)
	assert.Equal(t, "Dev Intermediate CA", bundle.Intermediate.Cert.Subject.CommonName)
	assert.True(t, bundle.Root.IsCA)
	assert.True(t, bundle.Intermediate.Cert.IsCA)
	require.NoError(t, bundle.Intermediate.Cert.CheckSignatureFrom(bundle.Root))

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, bundle, again)
}

func TestLoad_IntermediateIssues(t *testing.T) {
	bundle, err := Load()
	require.NoError(t, err)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cert, err := bundle.Intermediate.Issue(
		certificates.RoleLegalIdentity,
		x500.MustParse("O=Bank A, L=London, C=GB"),
		pub,
	)
	require.NoError(t, err)

	chain := append([]*x509.Certificate{cert}, bundle.Chain()...)
	require.NoError(t, certificates.VerifyChain(chain, bundle.Root))
}

func TestDecode_WrongPassword(t *testing.T) {
	_, err := Decode(bundledStore, "not-the-password")
	assert.Error(t, err)
}

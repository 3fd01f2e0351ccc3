// Package devca exposes the development certificate authority bundled with the binary. Its keys are public
// and must never back a production network.
package devca

import (
	"crypto/x509"
	_ "embed"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pkcs12"

	"github.com/fystack/devidentity/pkg/certificates"
	"github.com/fystack/devidentity/pkg/config"
)

//go:embed certificates/devcakeys.p12
var bundledStore []byte

var ErrMissingEntry = errors.New("dev CA store entry missing")

// Bundle holds the dev trust anchors: the self-signed root and the intermediate that signs node identities.
type Bundle struct {
	Root         *x509.Certificate
	Intermediate *certificates.CA
}

// Chain returns the intermediate followed by the root.
func (b *Bundle) Chain() []*x509.Certificate {
	return []*x509.Certificate{b.Intermediate.Cert, b.Root}
}

var (
	loadOnce sync.Once
	loaded   *Bundle
	loadErr  error
)

// Load decodes the bundled store once per process.
func Load() (*Bundle, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Decode(bundledStore, config.DevCAStorePassword)
	})
	return loaded, loadErr
}

// Decode reads a PKCS#12 store holding the root certificate under config.DevRootCAAlias and the intermediate
// certificate and key under config.DevIntermediateCAAlias.
func Decode(data []byte, password string) (*Bundle, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode dev CA store: %w", err)
	}

	certs := map[string]*x509.Certificate{}
	var intermediateKey *pem.Block
	for _, block := range blocks {
		alias := block.Headers["friendlyName"]
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse dev CA certificate %q: %w", alias, err)
			}
			certs[alias] = cert
		case "PRIVATE KEY":
			if alias == config.DevIntermediateCAAlias {
				intermediateKey = block
			}
		}
	}

	root, ok := certs[config.DevRootCAAlias]
	if !ok {
		return nil, fmt.Errorf("%w: %s certificate", ErrMissingEntry, config.DevRootCAAlias)
	}
	intermediateCert, ok := certs[config.DevIntermediateCAAlias]
	if !ok {
		return nil, fmt.Errorf("%w: %s certificate", ErrMissingEntry, config.DevIntermediateCAAlias)
	}
	if intermediateKey == nil {
		return nil, fmt.Errorf("%w: %s private key", ErrMissingEntry, config.DevIntermediateCAAlias)
	}

	signer, err := certificates.ParsePrivateKey(intermediateKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse dev intermediate CA key: %w", err)
	}

	return &Bundle{
		Root:         root,
		Intermediate: certificates.NewCA(signer, intermediateCert),
	}, nil
}

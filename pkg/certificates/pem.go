package certificates

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	certificateType     = "CERTIFICATE"
	ecPrivateKeyType    = "EC PRIVATE KEY"
	pkcs8PrivateKeyType = "PRIVATE KEY"
)

// ParsePEMCerts returns a list of certificates from the given PEM certs data
func ParsePEMCerts(pemData []byte) ([]*x509.Certificate, error) {
	certs := []*x509.Certificate{}
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != certificateType {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}

		certs = append(certs, cert)
	}
	return certs, nil
}

// EncodePEMCert encodes the given certificate blocks as a PEM certificate
func EncodePEMCert(certBlocks ...[]byte) []byte {
	var buf bytes.Buffer
	for _, block := range certBlocks {
		_, _ = buf.Write(pem.EncodeToMemory(&pem.Block{Type: certificateType, Bytes: block}))
	}
	return buf.Bytes()
}

// EncodePEMChain encodes a certificate chain, leaf first.
func EncodePEMChain(chain []*x509.Certificate) []byte {
	blocks := make([][]byte, 0, len(chain))
	for _, cert := range chain {
		blocks = append(blocks, cert.Raw)
	}
	return EncodePEMCert(blocks...)
}

// EncodePEMPrivateKey encodes the given private key in the PEM format
func EncodePEMPrivateKey(privateKey crypto.Signer) ([]byte, error) {
	var block *pem.Block
	switch k := privateKey.(type) {
	case *ecdsa.PrivateKey:
		b, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			return nil, err
		}
		block = &pem.Block{Type: ecPrivateKeyType, Bytes: b}
	default:
		b, err := x509.MarshalPKCS8PrivateKey(k)
		if err != nil {
			return nil, err
		}
		block = &pem.Block{Type: pkcs8PrivateKeyType, Bytes: b}
	}
	return pem.EncodeToMemory(block), nil
}

// ParsePEMPrivateKey parses the given private key in the PEM format
func ParsePEMPrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing private key")
	}
	return ParsePrivateKey(block.Bytes)
}

// ParsePrivateKey parses a DER private key in PKCS#8 or SEC 1 form.
func ParsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("private key of type %T cannot sign", key)
		}
		return signer, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key encoding")
}

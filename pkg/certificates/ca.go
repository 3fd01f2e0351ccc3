package certificates

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// DefaultCertValidity is the validity of issued leaf certificates, capped by the issuer's own expiry.
	DefaultCertValidity = 10 * 365 * 24 * time.Hour
	// DefaultCAValidity is the validity of self-signed CAs built by NewSelfSignedCA.
	DefaultCAValidity = 20 * 365 * 24 * time.Hour

	// certificates are backdated to tolerate clock skew between nodes
	backdate = 10 * time.Minute
)

var (
	// SerialNumberLimit is the maximum number used as a certificate serial number
	SerialNumberLimit = new(big.Int).Lsh(big.NewInt(1), 128)

	// ErrIssuance wraps every failure to produce a certificate.
	ErrIssuance = errors.New("certificate issuance failed")
)

// CA is a simple certificate authority
type CA struct {
	// PrivateKey is the CA private key
	PrivateKey crypto.Signer
	// Cert is the certificate used to issue new certificates
	Cert *x509.Certificate
}

// ValidatedCertificateTemplate is a type alias used to convey that the certificate template has been validated and
// should be considered trusted.
type ValidatedCertificateTemplate x509.Certificate

// NewCA returns a ca with the given private key and cert
func NewCA(privateKey crypto.Signer, cert *x509.Certificate) *CA {
	return &CA{
		PrivateKey: privateKey,
		Cert:       cert,
	}
}

// CABuilderOptions are options to build a self-signed CA
type CABuilderOptions struct {
	// Subject of the CA to build.
	Subject pkix.Name
	// PrivateKey to be used for signing certificates (ECDSA P-256, auto-generated if not provided).
	PrivateKey crypto.Signer
	// ExpireIn defines in how much time will the CA expire (defaults to DefaultCAValidity if not provided).
	ExpireIn *time.Duration
}

// NewSelfSignedCA creates a self-signed CA according to the given options
func NewSelfSignedCA(options CABuilderOptions) (*CA, error) {
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	privateKey := options.PrivateKey
	if privateKey == nil {
		privateKey, err = ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
		if err != nil {
			return nil, fmt.Errorf("unable to generate the private key: %w", err)
		}
	}

	notAfter := time.Now().Add(DefaultCAValidity)
	if options.ExpireIn != nil {
		notAfter = time.Now().Add(*options.ExpireIn)
	}

	certificateTemplate := x509.Certificate{
		SerialNumber:          serial,
		Subject:               options.Subject,
		NotBefore:             time.Now().Add(-backdate),
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	certData, err := x509.CreateCertificate(cryptorand.Reader, &certificateTemplate, &certificateTemplate, privateKey.Public(), privateKey)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(certData)
	if err != nil {
		return nil, err
	}

	return &CA{
		PrivateKey: privateKey,
		Cert:       cert,
	}, nil
}

// CreateCertificate signs and creates a new certificate for a validated template.
func (c *CA) CreateCertificate(
	validatedCertificateTemplate ValidatedCertificateTemplate,
) ([]byte, error) {
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}
	validatedCertificateTemplate.SerialNumber = serial

	certTemplate := x509.Certificate(validatedCertificateTemplate)

	return x509.CreateCertificate(
		cryptorand.Reader,
		&certTemplate,
		c.Cert,
		validatedCertificateTemplate.PublicKey,
		c.PrivateKey,
	)
}

func newSerial() (*big.Int, error) {
	serial, err := cryptorand.Int(cryptorand.Reader, SerialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("unable to generate serial number for new certificate: %w", err)
	}
	return serial, nil
}

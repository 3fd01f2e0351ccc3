package certificates

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	cryptorand "crypto/rand"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/x500"
)

// placeholderKey stands in for keys that crypto/x509 cannot marshal. Its SubjectPublicKeyInfo is swapped out
// before the certificate is signed for real.
var placeholderKey = ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)).Public()

// Issue creates a certificate for pub, signed by the CA, with subject and role set. pub may be any key
// supported by crypto/x509 or a *compositekey.Key.
func (c *CA) Issue(role Role, subject x500.Name, pub crypto.PublicKey) (*x509.Certificate, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %d", ErrIssuance, int(role))
	}
	if err := subject.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuance, err)
	}
	if pub == nil {
		return nil, fmt.Errorf("%w: no public key", ErrIssuance)
	}

	template, err := c.leafTemplate(role, subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuance, err)
	}

	var cert *x509.Certificate
	if key, ok := pub.(*compositekey.Key); ok && key.Kind() == compositekey.KindThreshold {
		cert, err = c.issueComposite(template, key)
	} else {
		if ok {
			pub = key.PublicKey()
		}
		cert, err = c.issueStandard(template, pub)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuance, err)
	}
	return cert, nil
}

func (c *CA) leafTemplate(role Role, subject x500.Name) (ValidatedCertificateTemplate, error) {
	ext, err := role.extension()
	if err != nil {
		return ValidatedCertificateTemplate{}, err
	}

	now := time.Now()
	notAfter := now.Add(DefaultCertValidity)
	if c.Cert.NotAfter.Before(notAfter) {
		notAfter = c.Cert.NotAfter
	}

	return ValidatedCertificateTemplate{
		Subject:               subject.ToPKIX(),
		NotBefore:             now.Add(-backdate),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		ExtraExtensions:       []pkix.Extension{ext},
	}, nil
}

func (c *CA) issueStandard(template ValidatedCertificateTemplate, pub crypto.PublicKey) (*x509.Certificate, error) {
	template.PublicKey = pub
	der, err := c.CreateCertificate(template)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// issueComposite has crypto/x509 build the certificate around a placeholder key, then splices the composite
// SubjectPublicKeyInfo into the TBSCertificate and signs it again with the CA key.
func (c *CA) issueComposite(template ValidatedCertificateTemplate, key *compositekey.Key) (*x509.Certificate, error) {
	spki, err := key.MarshalPKIX()
	if err != nil {
		return nil, err
	}

	template.PublicKey = placeholderKey
	der, err := c.CreateCertificate(template)
	if err != nil {
		return nil, err
	}
	draft, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	tbs, err := replaceElement(draft.RawTBSCertificate, draft.RawSubjectPublicKeyInfo, spki)
	if err != nil {
		return nil, err
	}
	sigAlg, err := signatureAlgorithmElement(der)
	if err != nil {
		return nil, err
	}
	signature, err := c.sign(tbs, draft.SignatureAlgorithm)
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(tbs)
		b.AddBytes(sigAlg)
		b.AddASN1BitString(signature)
	})
	final, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(final)
	if err != nil {
		return nil, err
	}
	if err := cert.CheckSignatureFrom(c.Cert); err != nil {
		return nil, fmt.Errorf("re-signed certificate does not verify: %w", err)
	}
	return cert, nil
}

func (c *CA) sign(tbs []byte, alg x509.SignatureAlgorithm) ([]byte, error) {
	hash, err := signatureHash(alg)
	if err != nil {
		return nil, err
	}
	if hash == 0 {
		return c.PrivateKey.Sign(cryptorand.Reader, tbs, crypto.Hash(0))
	}
	h := hash.New()
	h.Write(tbs)
	return c.PrivateKey.Sign(cryptorand.Reader, h.Sum(nil), hash)
}

func signatureHash(alg x509.SignatureAlgorithm) (crypto.Hash, error) {
	switch alg {
	case x509.ECDSAWithSHA256, x509.SHA256WithRSA:
		return crypto.SHA256, nil
	case x509.ECDSAWithSHA384, x509.SHA384WithRSA:
		return crypto.SHA384, nil
	case x509.ECDSAWithSHA512, x509.SHA512WithRSA:
		return crypto.SHA512, nil
	case x509.PureEd25519:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported issuer signature algorithm %s", alg)
	}
}

// replaceElement rewrites the SEQUENCE in der, substituting the first top-level element equal to old.
func replaceElement(der, old, replacement []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var body cryptobyte.String
	if !input.ReadASN1(&body, casn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("malformed TBSCertificate")
	}

	replaced, malformed := false, false
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for !body.Empty() {
			var element cryptobyte.String
			var tag casn1.Tag
			if !body.ReadAnyASN1Element(&element, &tag) {
				malformed = true
				return
			}
			if !replaced && bytes.Equal(element, old) {
				b.AddBytes(replacement)
				replaced = true
				continue
			}
			b.AddBytes(element)
		}
	})
	if malformed {
		return nil, fmt.Errorf("malformed TBSCertificate")
	}
	if !replaced {
		return nil, fmt.Errorf("subject public key info not found in TBSCertificate")
	}
	return b.Bytes()
}

func signatureAlgorithmElement(certDER []byte) ([]byte, error) {
	input := cryptobyte.String(certDER)
	var cert cryptobyte.String
	var sigAlg cryptobyte.String
	if !input.ReadASN1(&cert, casn1.SEQUENCE) ||
		!cert.SkipASN1(casn1.SEQUENCE) ||
		!cert.ReadASN1Element(&sigAlg, casn1.SEQUENCE) {
		return nil, fmt.Errorf("malformed certificate")
	}
	return sigAlg, nil
}

// SubjectPublicKey returns the public key certified by cert, decoding composite keys that crypto/x509 leaves
// unparsed.
func SubjectPublicKey(cert *x509.Certificate) (crypto.PublicKey, error) {
	if cert.PublicKey != nil {
		return cert.PublicKey, nil
	}
	return compositekey.ParsePublicKey(cert.RawSubjectPublicKeyInfo)
}

package certificates

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// ErrUntrustedChain is returned when a certificate path does not lead to the trusted root.
var ErrUntrustedChain = errors.New("certificate does not chain to the trusted root")

// VerifyChain checks that chain, ordered leaf first, links certificate by certificate up to root and that
// the last element is root itself.
func VerifyChain(chain []*x509.Certificate, root *x509.Certificate) error {
	if root == nil {
		return fmt.Errorf("%w: no trusted root", ErrUntrustedChain)
	}
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrUntrustedChain)
	}
	if last := chain[len(chain)-1]; !last.Equal(root) {
		return fmt.Errorf("%w: chain ends at %q", ErrUntrustedChain, last.Subject.String())
	}

	for i := 0; i+1 < len(chain); i++ {
		child, parent := chain[i], chain[i+1]
		if !bytes.Equal(child.RawIssuer, parent.RawSubject) {
			return fmt.Errorf("%w: %q is not issued by %q", ErrUntrustedChain, child.Subject.String(), parent.Subject.String())
		}
		if err := child.CheckSignatureFrom(parent); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrUntrustedChain, child.Subject.String(), err)
		}
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)
	intermediates := x509.NewCertPool()
	if len(chain) > 2 {
		for _, cert := range chain[1 : len(chain)-1] {
			intermediates.AddCert(cert)
		}
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   time.Now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUntrustedChain, err)
	}
	return nil
}

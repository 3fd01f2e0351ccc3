package compositekey

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// OID identifies a composite key in a SubjectPublicKeyInfo.
var OID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 50530, 1, 2}

// maxDepth bounds nesting when decoding untrusted input.
const maxDepth = 16

// Marshal returns the DER body of a threshold node:
//
//	CompositeKey ::= SEQUENCE {
//	    threshold INTEGER,
//	    children  SEQUENCE OF SEQUENCE { key SubjectPublicKeyInfo, weight INTEGER } }
//
// Every child has weight 1.
func (k *Key) Marshal() ([]byte, error) {
	if k.kind != KindThreshold {
		return nil, fmt.Errorf("%w: only threshold nodes have a composite encoding", ErrMalformed)
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(int64(k.threshold))
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, child := range k.children {
				spki, err := child.MarshalPKIX()
				if err != nil {
					b.SetError(err)
					return
				}
				b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddBytes(spki)
					b.AddASN1Int64(1)
				})
			}
		})
	})
	return b.Bytes()
}

// MarshalPKIX returns the SubjectPublicKeyInfo of the key. Leaves encode as
// their wrapped public key.
func (k *Key) MarshalPKIX() ([]byte, error) {
	if k.kind == KindLeaf {
		der, err := x509.MarshalPKIXPublicKey(k.leaf)
		if err != nil {
			return nil, fmt.Errorf("marshal leaf key: %w", err)
		}
		return der, nil
	}

	body, err := k.Marshal()
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(casn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OID)
		})
		b.AddASN1BitString(body)
	})
	return b.Bytes()
}

// MarshalPublicKey encodes either a composite key or an ordinary public key as a
// SubjectPublicKeyInfo.
func MarshalPublicKey(pub crypto.PublicKey) ([]byte, error) {
	if k, ok := pub.(*Key); ok {
		return k.MarshalPKIX()
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return der, nil
}

// ParsePublicKey decodes a SubjectPublicKeyInfo. Composite keys come back as
// *Key, anything else as the key type x509.ParsePKIXPublicKey returns.
func ParsePublicKey(der []byte) (crypto.PublicKey, error) {
	return parsePublicKey(der, 0)
}

// Unmarshal decodes the DER body produced by Marshal.
func Unmarshal(body []byte) (*Key, error) {
	return unmarshal(body, 0)
}

func parsePublicKey(der []byte, depth int) (crypto.PublicKey, error) {
	input := cryptobyte.String(der)
	var spki, algorithm cryptobyte.String
	var oid asn1.ObjectIdentifier
	if !input.ReadASN1(&spki, casn1.SEQUENCE) || !input.Empty() ||
		!spki.ReadASN1(&algorithm, casn1.SEQUENCE) ||
		!algorithm.ReadASN1ObjectIdentifier(&oid) {
		return nil, fmt.Errorf("%w: invalid subject public key info", ErrMalformed)
	}

	if !oid.Equal(OID) {
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		return pub, nil
	}

	var body []byte
	if !algorithm.Empty() || !spki.ReadASN1BitStringAsBytes(&body) || !spki.Empty() {
		return nil, fmt.Errorf("%w: invalid composite key bit string", ErrMalformed)
	}
	return unmarshal(body, depth)
}

func unmarshal(body []byte, depth int) (*Key, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}

	input := cryptobyte.String(body)
	var seq, nodes cryptobyte.String
	var threshold int64
	if !input.ReadASN1(&seq, casn1.SEQUENCE) || !input.Empty() ||
		!seq.ReadASN1Integer(&threshold) ||
		!seq.ReadASN1(&nodes, casn1.SEQUENCE) || !seq.Empty() {
		return nil, fmt.Errorf("%w: invalid composite key structure", ErrMalformed)
	}

	var children []*Key
	for !nodes.Empty() {
		var node cryptobyte.String
		var child cryptobyte.String
		var weight int64
		if !nodes.ReadASN1(&node, casn1.SEQUENCE) ||
			!node.ReadASN1Element(&child, casn1.SEQUENCE) ||
			!node.ReadASN1Integer(&weight) || !node.Empty() {
			return nil, fmt.Errorf("%w: invalid composite key child", ErrMalformed)
		}
		if weight != 1 {
			return nil, fmt.Errorf("%w: unsupported child weight %d", ErrMalformed, weight)
		}
		pub, err := parsePublicKey(child, depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, Leaf(pub))
	}

	if threshold < 1 || threshold > int64(len(children)) {
		return nil, fmt.Errorf("%w: threshold %d outside [1, %d]", ErrInvalidThreshold, threshold, len(children))
	}
	return New(children, int(threshold))
}

// Fingerprint returns the base58 SHA2-256 multihash of the key's
// SubjectPublicKeyInfo.
func Fingerprint(pub crypto.PublicKey) (string, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return "", err
	}
	mh, err := multihash.Sum(der, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash public key: %w", err)
	}
	return mh.B58String(), nil
}

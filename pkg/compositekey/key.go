// Package compositekey implements threshold public keys: a tree whose leaves are
// ordinary public keys and whose inner nodes require a minimum number of
// satisfied children. A composite key has no private half. It is satisfied by
// signatures from enough of its leaves.
package compositekey

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrInvalidThreshold = errors.New("invalid threshold configuration")
	ErrDuplicateChild   = errors.New("duplicate composite key child")
	ErrMalformed        = errors.New("malformed composite key")
)

// Kind tags the two variants of a Key.
type Kind int

const (
	KindLeaf Kind = iota
	KindThreshold
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindThreshold:
		return "threshold"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key is either a Leaf wrapping an ordinary public key or a Threshold node over
// an ordered list of child keys. Keys are immutable once built.
type Key struct {
	kind      Kind
	leaf      crypto.PublicKey
	children  []*Key
	threshold int
}

// Leaf wraps an ordinary public key. A *Key passed in is returned unchanged.
func Leaf(pub crypto.PublicKey) *Key {
	if k, ok := pub.(*Key); ok {
		return k
	}
	return &Key{kind: KindLeaf, leaf: pub}
}

// New builds a threshold node over children, in the given order.
func New(children []*Key, threshold int) (*Key, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: composite key needs at least one child", ErrInvalidThreshold)
	}
	if threshold < 1 || threshold > len(children) {
		return nil, fmt.Errorf("%w: threshold %d outside [1, %d]", ErrInvalidThreshold, threshold, len(children))
	}

	encoded := make([][]byte, 0, len(children))
	for i, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: child %d is nil", ErrMalformed, i)
		}
		der, err := child.MarshalPKIX()
		if err != nil {
			return nil, fmt.Errorf("encode child %d: %w", i, err)
		}
		for j, prev := range encoded {
			if bytes.Equal(prev, der) {
				return nil, fmt.Errorf("%w: children %d and %d are the same key", ErrDuplicateChild, j, i)
			}
		}
		encoded = append(encoded, der)
	}

	return &Key{
		kind:      KindThreshold,
		children:  append([]*Key(nil), children...),
		threshold: threshold,
	}, nil
}

// Builder collects child keys in insertion order.
type Builder struct {
	children []*Key
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddKey appends a child. Passing a *Key nests it as a subtree.
func (b *Builder) AddKey(pub crypto.PublicKey) *Builder {
	b.children = append(b.children, Leaf(pub))
	return b
}

func (b *Builder) AddKeys(pubs ...crypto.PublicKey) *Builder {
	for _, pub := range pubs {
		b.AddKey(pub)
	}
	return b
}

// Build returns a one-level threshold node over the added keys.
func (b *Builder) Build(threshold int) (*Key, error) {
	return New(b.children, threshold)
}

func (k *Key) Kind() Kind {
	return k.kind
}

// PublicKey returns the wrapped key of a leaf, nil for threshold nodes.
func (k *Key) PublicKey() crypto.PublicKey {
	return k.leaf
}

// Threshold returns the number of children that must be satisfied; 1 for leaves.
func (k *Key) Threshold() int {
	if k.kind == KindLeaf {
		return 1
	}
	return k.threshold
}

// Children returns the immediate children in canonical order.
func (k *Key) Children() []*Key {
	return append([]*Key(nil), k.children...)
}

// Leaves returns every leaf public key, depth first.
func (k *Key) Leaves() []crypto.PublicKey {
	if k.kind == KindLeaf {
		return []crypto.PublicKey{k.leaf}
	}
	return lo.FlatMap(k.children, func(child *Key, _ int) []crypto.PublicKey {
		return child.Leaves()
	})
}

// IsFulfilledBy reports whether signatures from exactly the given leaf keys
// would satisfy every threshold on the path to the root.
func (k *Key) IsFulfilledBy(keys ...crypto.PublicKey) bool {
	if k.kind == KindLeaf {
		return lo.ContainsBy(keys, func(pub crypto.PublicKey) bool {
			return publicKeysEqual(k.leaf, pub)
		})
	}

	satisfied := 0
	for _, child := range k.children {
		if child.IsFulfilledBy(keys...) {
			satisfied++
			if satisfied >= k.threshold {
				return true
			}
		}
	}
	return false
}

// Signature is a signature made by one leaf key.
type Signature struct {
	By    crypto.PublicKey
	Bytes []byte
}

// Verify checks each signature against the leaf that made it and then folds the
// valid signers through the thresholds. Invalid signatures are ignored.
func (k *Key) Verify(message []byte, signatures []Signature) bool {
	var signers []crypto.PublicKey
	for _, sig := range signatures {
		if !lo.ContainsBy(k.Leaves(), func(pub crypto.PublicKey) bool { return publicKeysEqual(pub, sig.By) }) {
			continue
		}
		if verifyLeaf(sig.By, message, sig.Bytes) {
			signers = append(signers, sig.By)
		}
	}
	return k.IsFulfilledBy(signers...)
}

func verifyLeaf(pub crypto.PublicKey, message, sig []byte) bool {
	switch key := pub.(type) {
	case ed25519.PublicKey:
		return len(key) == ed25519.PublicKeySize && ed25519.Verify(key, message, sig)
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(key, digest[:], sig)
	default:
		return false
	}
}

// Equal reports whether x encodes to the same composite key. Children order matters.
func (k *Key) Equal(x crypto.PublicKey) bool {
	other, ok := x.(*Key)
	if !ok {
		if k.kind == KindLeaf {
			return publicKeysEqual(k.leaf, x)
		}
		return false
	}
	a, errA := k.MarshalPKIX()
	b, errB := other.MarshalPKIX()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (k *Key) String() string {
	if k.kind == KindLeaf {
		fp, err := Fingerprint(k.leaf)
		if err != nil {
			return "leaf(?)"
		}
		return "leaf(" + fp + ")"
	}
	parts := lo.Map(k.children, func(child *Key, _ int) string { return child.String() })
	return fmt.Sprintf("threshold(%d of [%s])", k.threshold, strings.Join(parts, ", "))
}

type equaler interface {
	Equal(x crypto.PublicKey) bool
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	if ka, ok := a.(*Key); ok {
		return ka.Equal(b)
	}
	if kb, ok := b.(*Key); ok {
		return kb.Equal(a)
	}
	eq, ok := a.(equaler)
	return ok && eq.Equal(b)
}

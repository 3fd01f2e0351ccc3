package identity

import (
	"crypto"
	"fmt"

	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/x500"
)

// Party is a named public identity: a legal name bound to either a plain public key or a composite key.
type Party struct {
	Name x500.Name
	Key  crypto.PublicKey
}

// Composite returns the party's composite key, if it has one.
func (p *Party) Composite() (*compositekey.Key, bool) {
	key, ok := p.Key.(*compositekey.Key)
	return key, ok && key.Kind() == compositekey.KindThreshold
}

// Fingerprint identifies the party's key.
func (p *Party) Fingerprint() (string, error) {
	return compositekey.Fingerprint(p.Key)
}

func (p *Party) String() string {
	fingerprint, err := p.Fingerprint()
	if err != nil {
		return p.Name.String()
	}
	return fmt.Sprintf("%s (%s)", p.Name, fingerprint)
}

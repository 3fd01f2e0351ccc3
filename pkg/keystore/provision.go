package keystore

import (
	"crypto"
	"crypto/x509"
)

// Provision opens or creates the keystore at path and stores chain under alias, replacing the alias if it
// already exists. With a nil key the entry is certificate-only and keyPassword is ignored. The file is
// replaced atomically, so re-running with the same arguments leaves an equivalent store.
func Provision(
	path, storePassword, keyPassword, alias string,
	key crypto.Signer,
	chain []*x509.Certificate,
	opts ...Option,
) error {
	store, err := LoadOrCreate(path, storePassword, opts...)
	if err != nil {
		return err
	}

	if key != nil {
		err = store.SetKeyEntry(alias, key, keyPassword, chain)
	} else {
		err = store.SetCertificateEntry(alias, chain)
	}
	if err != nil {
		return err
	}

	return store.Save()
}

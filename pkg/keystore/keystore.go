// Package keystore persists private keys and certificate chains in a password protected file.
//
// The file is an age (scrypt) encrypted JSON document. Private key entries are encrypted a second time with
// a per-entry password, so reading the certificates of a store does not expose its keys. A Store is not safe
// for concurrent use and callers serialise writers per file.
package keystore

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"time"

	"filippo.io/age"
	"github.com/samber/lo"

	"github.com/fystack/devidentity/pkg/filesystem"
	"github.com/fystack/devidentity/pkg/logger"
)

const (
	formatVersion = 1

	// DefaultWorkFactor is the scrypt log2 work factor used when none is configured.
	DefaultWorkFactor = 12

	filePerm = 0o600
)

var (
	// ErrKeystoreIO reports a failure to read or write the keystore file.
	ErrKeystoreIO = errors.New("keystore I/O error")
	// ErrKeystoreFormat reports a keystore that cannot be decoded: corrupt content, an unknown version or a
	// wrong password.
	ErrKeystoreFormat = errors.New("keystore format error")
	// ErrEntryNotFound is returned when an alias is absent.
	ErrEntryNotFound = errors.New("keystore entry not found")
	// ErrInvalidEntry is returned when an entry cannot be stored as given.
	ErrInvalidEntry = errors.New("invalid keystore entry")
)

// EntryType distinguishes entries holding a private key from certificate-only entries.
type EntryType string

const (
	PrivateKeyEntry  EntryType = "private-key"
	CertificateEntry EntryType = "certificate"
)

type document struct {
	Version int                      `json:"version"`
	Entries map[string]documentEntry `json:"entries"`
}

type documentEntry struct {
	Type      EntryType `json:"type"`
	Key       []byte    `json:"key,omitempty"`
	Chain     [][]byte  `json:"chain"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a single alias of a keystore.
type Entry struct {
	Alias     string
	Type      EntryType
	Chain     []*x509.Certificate
	CreatedAt time.Time

	sealedKey []byte
}

// Certificate returns the first certificate of the chain.
func (e *Entry) Certificate() *x509.Certificate {
	if len(e.Chain) == 0 {
		return nil
	}
	return e.Chain[0]
}

// PrivateKey decrypts the entry's private key with keyPassword.
func (e *Entry) PrivateKey(keyPassword string) (crypto.Signer, error) {
	if e.Type != PrivateKeyEntry {
		return nil, fmt.Errorf("%w: %q has no private key", ErrInvalidEntry, e.Alias)
	}
	der, err := open(e.sealedKey, keyPassword)
	if err != nil {
		return nil, fmt.Errorf("cannot recover key %q: %w", e.Alias, err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %w", ErrKeystoreFormat, e.Alias, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: key %q of type %T cannot sign", ErrKeystoreFormat, e.Alias, key)
	}
	return signer, nil
}

// Store is an in-memory view of a keystore file. Changes are written by Save.
type Store struct {
	path       string
	password   string
	workFactor int
	entries    map[string]*Entry
}

type Option func(*Store)

// WithWorkFactor sets the scrypt log2 work factor used when encrypting.
func WithWorkFactor(logN int) Option {
	return func(s *Store) {
		if logN > 0 {
			s.workFactor = logN
		}
	}
}

func newStore(path, password string, opts []Option) *Store {
	s := &Store{
		path:       path,
		password:   password,
		workFactor: DefaultWorkFactor,
		entries:    map[string]*Entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load opens an existing keystore. A missing file is reported as ErrKeystoreIO wrapping fs.ErrNotExist.
func Load(path, password string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrKeystoreIO, path, err)
	}

	s := newStore(path, password, opts)
	if err := s.decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadOrCreate opens the keystore at path, or returns an empty store that will be created on Save.
func LoadOrCreate(path, password string, opts ...Option) (*Store, error) {
	s, err := Load(path, password, opts...)
	if errors.Is(err, fs.ErrNotExist) {
		return newStore(path, password, opts), nil
	}
	return s, err
}

func (s *Store) Path() string {
	return s.path
}

// SetKeyEntry stores key with its certificate chain (leaf first) under alias, replacing any previous entry.
func (s *Store) SetKeyEntry(alias string, key crypto.Signer, keyPassword string, chain []*x509.Certificate) error {
	if err := checkEntry(alias, chain); err != nil {
		return err
	}
	if key == nil {
		return fmt.Errorf("%w: %q: no private key", ErrInvalidEntry, alias)
	}
	if keyPassword == "" {
		return fmt.Errorf("%w: %q: empty key password", ErrInvalidEntry, alias)
	}
	if certKey, ok := chain[0].PublicKey.(interface{ Equal(crypto.PublicKey) bool }); ok && !certKey.Equal(key.Public()) {
		return fmt.Errorf("%w: %q: private key does not match the certificate", ErrInvalidEntry, alias)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEntry, alias, err)
	}
	sealed, err := seal(der, keyPassword, s.workFactor)
	if err != nil {
		return fmt.Errorf("seal key %q: %w", alias, err)
	}

	s.entries[alias] = &Entry{
		Alias:     alias,
		Type:      PrivateKeyEntry,
		Chain:     slices.Clone(chain),
		CreatedAt: time.Now().UTC(),
		sealedKey: sealed,
	}
	return nil
}

// SetCertificateEntry stores a certificate-only entry under alias, replacing any previous entry.
func (s *Store) SetCertificateEntry(alias string, chain []*x509.Certificate) error {
	if err := checkEntry(alias, chain); err != nil {
		return err
	}
	s.entries[alias] = &Entry{
		Alias:     alias,
		Type:      CertificateEntry,
		Chain:     slices.Clone(chain),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func checkEntry(alias string, chain []*x509.Certificate) error {
	if alias == "" {
		return fmt.Errorf("%w: empty alias", ErrInvalidEntry)
	}
	if len(chain) == 0 || lo.Contains(chain, nil) {
		return fmt.Errorf("%w: %q: certificate chain is empty or incomplete", ErrInvalidEntry, alias)
	}
	return nil
}

func (s *Store) Entry(alias string) (*Entry, error) {
	entry, ok := s.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrEntryNotFound, alias, s.path)
	}
	return entry, nil
}

func (s *Store) Contains(alias string) bool {
	_, ok := s.entries[alias]
	return ok
}

// Aliases returns the aliases in lexical order.
func (s *Store) Aliases() []string {
	aliases := lo.Keys(s.entries)
	slices.Sort(aliases)
	return aliases
}

// Delete removes alias and reports whether it was present.
func (s *Store) Delete(alias string) bool {
	_, ok := s.entries[alias]
	delete(s.entries, alias)
	return ok
}

// Save encrypts the store and atomically replaces the file.
func (s *Store) Save() error {
	data, err := s.encode()
	if err != nil {
		return err
	}
	if err := filesystem.AtomicWriteFile(s.path, data, filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrKeystoreIO, s.path, err)
	}
	logger.Debug("Keystore saved", "path", s.path, "entries", len(s.entries))
	return nil
}

func (s *Store) encode() ([]byte, error) {
	doc := document{
		Version: formatVersion,
		Entries: make(map[string]documentEntry, len(s.entries)),
	}
	for alias, entry := range s.entries {
		doc.Entries[alias] = documentEntry{
			Type:      entry.Type,
			Key:       entry.sealedKey,
			Chain:     lo.Map(entry.Chain, func(c *x509.Certificate, _ int) []byte { return c.Raw }),
			CreatedAt: entry.CreatedAt,
		}
	}

	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrKeystoreFormat, err)
	}
	return seal(plain, s.password, s.workFactor)
}

func (s *Store) decode(data []byte) error {
	plain, err := open(data, s.password)
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(plain, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrKeystoreFormat, err)
	}
	if doc.Version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrKeystoreFormat, doc.Version)
	}

	for alias, de := range doc.Entries {
		chain := make([]*x509.Certificate, 0, len(de.Chain))
		for _, der := range de.Chain {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return fmt.Errorf("%w: entry %q: %w", ErrKeystoreFormat, alias, err)
			}
			chain = append(chain, cert)
		}
		switch de.Type {
		case PrivateKeyEntry:
			if len(de.Key) == 0 {
				return fmt.Errorf("%w: entry %q: missing key", ErrKeystoreFormat, alias)
			}
		case CertificateEntry:
		default:
			return fmt.Errorf("%w: entry %q: unknown type %q", ErrKeystoreFormat, alias, de.Type)
		}
		s.entries[alias] = &Entry{
			Alias:     alias,
			Type:      de.Type,
			Chain:     chain,
			CreatedAt: de.CreatedAt,
			sealedKey: de.Key,
		}
	}
	return nil
}

func seal(plain []byte, password string, workFactor int) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrKeystoreFormat)
	}
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to create age encryption writer: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("failed to write encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func open(sealed []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrKeystoreFormat)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity for decryption: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("%w: keystore was tampered with, or password was incorrect", ErrKeystoreFormat)
		}
		return nil, fmt.Errorf("%w: %w", ErrKeystoreFormat, err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeystoreFormat, err)
	}
	return plain, nil
}

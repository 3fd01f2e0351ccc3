// Package registry records the parties created by the identity generator so other tooling can look them up
// by name or fingerprint without opening node keystores.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/identity"
	"github.com/fystack/devidentity/pkg/logger"
	"github.com/fystack/devidentity/pkg/storage"
	"github.com/fystack/devidentity/pkg/x500"
)

const keyPrefix = "party/"

var ErrRecordNotFound = errors.New("party record not found")

type Kind string

const (
	KindNode             Kind = "node"
	KindCompositeService Kind = "composite-service"
	KindSingularService  Kind = "singular-service"
)

// Record is the stored form of a party.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	PublicKey   []byte    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	Threshold   int       `json:"threshold,omitempty"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord describes party. members lists the node directories holding its keys.
func NewRecord(party *identity.Party, kind Kind, members []string) (*Record, error) {
	spki, err := compositekey.MarshalPublicKey(party.Key)
	if err != nil {
		return nil, err
	}
	fingerprint, err := party.Fingerprint()
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:          uuid.New(),
		Name:        party.Name.String(),
		Kind:        kind,
		PublicKey:   spki,
		Fingerprint: fingerprint,
		Members:     slices.Clone(members),
		CreatedAt:   time.Now().UTC(),
	}
	if composite, ok := party.Composite(); ok {
		record.Threshold = composite.Threshold()
	}
	return record, nil
}

// Party decodes the record back into a party.
func (r *Record) Party() (*identity.Party, error) {
	name, err := x500.Parse(r.Name)
	if err != nil {
		return nil, err
	}
	key, err := compositekey.ParsePublicKey(r.PublicKey)
	if err != nil {
		return nil, err
	}
	return &identity.Party{Name: name, Key: key}, nil
}

type Registry struct {
	store storage.Store
}

func New(store storage.Store) *Registry {
	return &Registry{store: store}
}

// Register stores a new record for party.
func (r *Registry) Register(party *identity.Party, kind Kind, members []string) (*Record, error) {
	record, err := NewRecord(party, kind, members)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal party record: %w", err)
	}
	if err := r.store.Put(keyPrefix+record.ID.String(), data); err != nil {
		return nil, fmt.Errorf("failed to save party record: %w", err)
	}

	logger.Info("Registered party",
		"id", record.ID.String(),
		"name", record.Name,
		"kind", string(record.Kind),
		"fingerprint", record.Fingerprint,
	)
	return record, nil
}

func (r *Registry) Get(id uuid.UUID) (*Record, error) {
	data, err := r.store.Get(keyPrefix + id.String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// List returns every record, oldest first.
func (r *Registry) List() ([]*Record, error) {
	keys, err := r.store.Keys()
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range lo.Filter(keys, func(key string, _ int) bool { return strings.HasPrefix(key, keyPrefix) }) {
		data, err := r.store.Get(key)
		if err != nil {
			return nil, err
		}
		record, err := decode(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	slices.SortFunc(records, func(a, b *Record) int {
		return lo.CoalesceOrEmpty(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.Name, b.Name))
	})
	return records, nil
}

// FindByName returns the records registered under name.
func (r *Registry) FindByName(name x500.Name) ([]*Record, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	return lo.Filter(records, func(record *Record, _ int) bool {
		return record.Name == name.String()
	}), nil
}

// FindByFingerprint returns the record whose key has fingerprint.
func (r *Registry) FindByFingerprint(fingerprint string) (*Record, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	record, ok := lo.Find(records, func(record *Record) bool {
		return record.Fingerprint == fingerprint
	})
	if !ok {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrRecordNotFound, fingerprint)
	}
	return record, nil
}

func (r *Registry) Delete(id uuid.UUID) error {
	return r.store.Delete(keyPrefix + id.String())
}

func (r *Registry) Close() error {
	return r.store.Close()
}

func decode(data []byte) (*Record, error) {
	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal party record: %w", err)
	}
	return record, nil
}

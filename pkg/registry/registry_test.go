package registry

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/devidentity/pkg/compositekey"
	"github.com/fystack/devidentity/pkg/identity"
	"github.com/fystack/devidentity/pkg/storage"
	"github.com/fystack/devidentity/pkg/x500"
)

func newKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.NewBadgerStore(storage.BadgerConfig{
		Password: "registry-pass",
		DBPath:   filepath.Join(t.TempDir(), "registry"),
	})
	require.NoError(t, err)
	r := New(store)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRegister_NodeParty(t *testing.T) {
	r := newRegistry(t)
	party := &identity.Party{Name: x500.MustParse("O=Bank A, L=London, C=GB"), Key: newKey(t)}

	record, err := r.Register(party, KindNode, []string{"/nodes/bank-a"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Zero(t, record.Threshold)

	stored, err := r.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Name, stored.Name)
	assert.Equal(t, record.Fingerprint, stored.Fingerprint)
	assert.Equal(t, []string{"/nodes/bank-a"}, stored.Members)

	decoded, err := stored.Party()
	require.NoError(t, err)
	assert.Equal(t, party.Name, decoded.Name)
	assert.True(t, party.Key.(ed25519.PublicKey).Equal(decoded.Key))
}

func TestRegister_CompositeParty(t *testing.T) {
	r := newRegistry(t)
	key, err := compositekey.NewBuilder().AddKeys(newKey(t), newKey(t), newKey(t)).Build(2)
	require.NoError(t, err)
	party := &identity.Party{Name: x500.MustParse("O=Notary Service, L=Zurich, C=CH"), Key: key}

	record, err := r.Register(party, KindCompositeService, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, record.Threshold)

	found, err := r.FindByFingerprint(record.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)

	decoded, err := found.Party()
	require.NoError(t, err)
	assert.True(t, key.Equal(decoded.Key))
}

func TestListAndFind(t *testing.T) {
	r := newRegistry(t)
	notary := x500.MustParse("O=Notary Service, L=Zurich, C=CH")
	keys := []crypto.PublicKey{newKey(t), newKey(t), newKey(t)}

	_, err := r.Register(&identity.Party{Name: notary, Key: keys[0]}, KindSingularService, []string{"a"})
	require.NoError(t, err)
	_, err = r.Register(&identity.Party{Name: notary, Key: keys[1]}, KindSingularService, []string{"b"})
	require.NoError(t, err)
	_, err = r.Register(&identity.Party{Name: x500.MustParse("O=Bank B, L=Paris, C=FR"), Key: keys[2]}, KindNode, nil)
	require.NoError(t, err)

	all, err := r.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matches, err := r.FindByName(notary)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestGet_Missing(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = r.FindByFingerprint("unknown")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDelete(t *testing.T) {
	r := newRegistry(t)
	party := &identity.Party{Name: x500.MustParse("O=Bank A, L=London, C=GB"), Key: newKey(t)}
	record, err := r.Register(party, KindNode, nil)
	require.NoError(t, err)

	require.NoError(t, r.Delete(record.ID))
	_, err = r.Get(record.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

package storage

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConsulKV struct {
	data map[string][]byte
	err  error
}

func newFakeConsulKV() *fakeConsulKV {
	return &fakeConsulKV{data: map[string][]byte{}}
}

func (f *fakeConsulKV) Put(kv *api.KVPair, _ *api.WriteOptions) (*api.WriteMeta, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.data[kv.Key] = kv.Value
	return &api.WriteMeta{}, nil
}

func (f *fakeConsulKV) Get(key string, _ *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	value, ok := f.data[key]
	if !ok {
		return nil, &api.QueryMeta{}, nil
	}
	return &api.KVPair{Key: key, Value: value}, &api.QueryMeta{}, nil
}

func (f *fakeConsulKV) Delete(key string, _ *api.WriteOptions) (*api.WriteMeta, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.data, key)
	return &api.WriteMeta{}, nil
}

func (f *fakeConsulKV) List(prefix string, _ *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	var pairs api.KVPairs
	for key, value := range f.data {
		if strings.HasPrefix(key, prefix) {
			pairs = append(pairs, &api.KVPair{Key: key, Value: value})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, &api.QueryMeta{}, nil
}

func TestConsulStore_CRUD(t *testing.T) {
	kv := newFakeConsulKV()
	kv.data["other/x"] = []byte("ignored")
	store := NewConsulStore(kv, "devidentity/parties/")

	require.NoError(t, store.Put("party/a", []byte("alpha")))
	assert.Contains(t, kv.data, "devidentity/parties/party/a")

	value, err := store.Get("party/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), value)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"party/a"}, keys)

	require.NoError(t, store.Delete("party/a"))
	_, err = store.Get("party/a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Close())
}

func TestConsulStore_Errors(t *testing.T) {
	kv := newFakeConsulKV()
	kv.err = errors.New("connection refused")
	store := NewConsulStore(kv, "devidentity/parties")

	assert.ErrorContains(t, store.Put("party/a", nil), "connection refused")
	_, err := store.Get("party/a")
	assert.ErrorContains(t, err, "connection refused")
	_, err = store.Keys()
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, store.Delete("party/a"), "connection refused")
}

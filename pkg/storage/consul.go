package storage

import (
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/samber/lo"

	"github.com/fystack/devidentity/pkg/infra"
)

// ConsulStore keeps every key under a fixed prefix of the Consul KV tree.
type ConsulStore struct {
	consulKV infra.ConsulKV
	prefix   string
}

var _ Store = (*ConsulStore)(nil)

func NewConsulStore(consulKV infra.ConsulKV, prefix string) *ConsulStore {
	return &ConsulStore{consulKV: consulKV, prefix: strings.TrimSuffix(prefix, "/")}
}

func (s *ConsulStore) Put(key string, value []byte) error {
	pair := &api.KVPair{Key: s.composeKey(key), Value: value}
	if _, err := s.consulKV.Put(pair, nil); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *ConsulStore) Get(key string) ([]byte, error) {
	pair, _, err := s.consulKV.Get(s.composeKey(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return pair.Value, nil
}

func (s *ConsulStore) Keys() ([]string, error) {
	pairs, _, err := s.consulKV.List(s.prefix+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.prefix, err)
	}
	return lo.Map(pairs, func(pair *api.KVPair, _ int) string {
		return strings.TrimPrefix(pair.Key, s.prefix+"/")
	}), nil
}

func (s *ConsulStore) Delete(key string) error {
	if _, err := s.consulKV.Delete(s.composeKey(key), nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *ConsulStore) Close() error {
	return nil
}

func (s *ConsulStore) composeKey(key string) string {
	return fmt.Sprintf("%s/%s", s.prefix, key)
}

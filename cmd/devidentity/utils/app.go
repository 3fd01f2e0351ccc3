package utils

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/fystack/devidentity/pkg/config"
	"github.com/fystack/devidentity/pkg/identity"
	"github.com/fystack/devidentity/pkg/registry"
	"github.com/fystack/devidentity/pkg/storage"
	"github.com/fystack/devidentity/pkg/x500"
)

// NewGenerator returns a dev generator configured from the loaded config.
func NewGenerator() *identity.Generator {
	return identity.NewDevGenerator(identity.WithWorkFactor(config.KeystoreWorkFactor()))
}

// ParseName parses a legal name given on the command line.
func ParseName(name string) (x500.Name, error) {
	parsed, err := x500.Parse(name)
	if err != nil {
		return x500.Name{}, fmt.Errorf("invalid --name %q: %w", name, err)
	}
	return parsed, nil
}

// AbsPaths resolves node directories so registry records do not depend on the working directory.
func AbsPaths(dirs []string) []string {
	return lo.Map(dirs, func(dir string, _ int) string {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return dir
		}
		return abs
	})
}

// OpenRegistry opens the configured registry. ok is false when the registry is disabled.
func OpenRegistry() (reg *registry.Registry, ok bool, err error) {
	store, err := storage.NewStore(config.Environment(), config.Registry())
	if errors.Is(err, storage.ErrDisabled) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return registry.New(store), true, nil
}

// RegisterParty records party in the configured registry, if any.
func RegisterParty(party *identity.Party, kind registry.Kind, members []string) error {
	reg, ok, err := OpenRegistry()
	if err != nil || !ok {
		return err
	}
	defer reg.Close()

	record, err := reg.Register(party, kind, AbsPaths(members))
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s as %s\n", record.Name, record.ID)
	return nil
}

// PrintParty writes a short description of party to stdout.
func PrintParty(party *identity.Party) {
	fingerprint, err := party.Fingerprint()
	if err != nil {
		fingerprint = "unavailable: " + err.Error()
	}
	fmt.Printf("Name:        %s\n", party.Name)
	fmt.Printf("Fingerprint: %s\n", fingerprint)
	if composite, ok := party.Composite(); ok {
		fmt.Printf("Composite:   %d of %d\n", composite.Threshold(), len(composite.Children()))
	}
}

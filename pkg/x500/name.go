// Package x500 handles the X.500 legal names used as certificate subjects.
//
// A legal name always carries an organisation, a locality and a country.
// Common name, organisational unit and state are optional.
package x500

import (
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxCommonNameLength   = 64
	maxOrganisationLength = 128
	maxLocalityLength     = 64
	maxUnitLength         = 64
	maxStateLength        = 64
)

var ErrInvalidName = errors.New("invalid legal name")

// Name is an X.500 distinguished name restricted to the attributes allowed in a
// legal identity.
type Name struct {
	CommonName       string
	OrganisationUnit string
	Organisation     string
	Locality         string
	State            string
	Country          string
}

// New builds a name from the mandatory attributes.
func New(organisation, locality, country string) (Name, error) {
	n := Name{Organisation: organisation, Locality: locality, Country: country}
	if err := n.Validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

// MustParse is Parse for static names; it panics on error.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Parse reads a comma separated name such as "O=Bank A, L=London, C=GB".
func Parse(s string) (Name, error) {
	var n Name
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Name{}, fmt.Errorf("%w: %q is not an attribute=value pair", ErrInvalidName, part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if seen[key] {
			return Name{}, fmt.Errorf("%w: duplicate attribute %s", ErrInvalidName, key)
		}
		seen[key] = true

		switch key {
		case "CN":
			n.CommonName = value
		case "OU":
			n.OrganisationUnit = value
		case "O":
			n.Organisation = value
		case "L":
			n.Locality = value
		case "ST":
			n.State = value
		case "C":
			n.Country = value
		default:
			return Name{}, fmt.Errorf("%w: unsupported attribute %s", ErrInvalidName, key)
		}
	}

	if err := n.Validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

// FromPKIX converts a certificate subject back into a legal name.
func FromPKIX(name pkix.Name) (Name, error) {
	n := Name{CommonName: name.CommonName}
	var err error
	if n.Organisation, err = single("O", name.Organization); err != nil {
		return Name{}, err
	}
	if n.OrganisationUnit, err = single("OU", name.OrganizationalUnit); err != nil {
		return Name{}, err
	}
	if n.Locality, err = single("L", name.Locality); err != nil {
		return Name{}, err
	}
	if n.State, err = single("ST", name.Province); err != nil {
		return Name{}, err
	}
	if n.Country, err = single("C", name.Country); err != nil {
		return Name{}, err
	}
	if err := n.Validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

func single(attr string, values []string) (string, error) {
	switch len(values) {
	case 0:
		return "", nil
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("%w: attribute %s has %d values", ErrInvalidName, attr, len(values))
	}
}

// Validate checks the mandatory attributes and the attribute lengths.
func (n Name) Validate() error {
	if n.Organisation == "" {
		return fmt.Errorf("%w: organisation (O) is required", ErrInvalidName)
	}
	if n.Locality == "" {
		return fmt.Errorf("%w: locality (L) is required", ErrInvalidName)
	}
	if len(n.Country) != 2 || !isUpperASCII(n.Country) {
		return fmt.Errorf("%w: country (C) must be a two letter ISO code, got %q", ErrInvalidName, n.Country)
	}

	limits := []struct {
		attr  string
		value string
		max   int
	}{
		{"CN", n.CommonName, maxCommonNameLength},
		{"OU", n.OrganisationUnit, maxUnitLength},
		{"O", n.Organisation, maxOrganisationLength},
		{"L", n.Locality, maxLocalityLength},
		{"ST", n.State, maxStateLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return fmt.Errorf("%w: attribute %s exceeds %d characters", ErrInvalidName, l.attr, l.max)
		}
		if strings.ContainsAny(l.value, ",=") {
			return fmt.Errorf("%w: attribute %s contains a reserved character", ErrInvalidName, l.attr)
		}
	}
	return nil
}

func isUpperASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// ToPKIX returns the certificate subject for this name.
func (n Name) ToPKIX() pkix.Name {
	name := pkix.Name{
		CommonName:   n.CommonName,
		Organization: []string{n.Organisation},
		Locality:     []string{n.Locality},
		Country:      []string{n.Country},
	}
	if n.OrganisationUnit != "" {
		name.OrganizationalUnit = []string{n.OrganisationUnit}
	}
	if n.State != "" {
		name.Province = []string{n.State}
	}
	return name
}

// String renders the name in the form accepted by Parse, most specific attribute first.
func (n Name) String() string {
	var parts []string
	add := func(attr, value string) {
		if value != "" {
			parts = append(parts, attr+"="+value)
		}
	}
	add("CN", n.CommonName)
	add("OU", n.OrganisationUnit)
	add("O", n.Organisation)
	add("L", n.Locality)
	add("ST", n.State)
	add("C", n.Country)
	return strings.Join(parts, ", ")
}

package certificates

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// Role is the purpose a certificate is issued for. It is carried in a non-critical extension so that
// standard X.509 tooling ignores it.
type Role int

const (
	RoleDoormanCA                 Role = 1
	RoleNetworkMap                Role = 2
	RoleServiceIdentity           Role = 3
	RoleNodeCA                    Role = 4
	RoleTLS                       Role = 5
	RoleLegalIdentity             Role = 6
	RoleConfidentialLegalIdentity Role = 7
	RoleNetworkParameters         Role = 8
)

// RoleExtensionOID identifies the certificate role extension.
var RoleExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 50530, 1, 1}

var roleNames = map[Role]string{
	RoleDoormanCA:                 "DOORMAN_CA",
	RoleNetworkMap:                "NETWORK_MAP",
	RoleServiceIdentity:           "SERVICE_IDENTITY",
	RoleNodeCA:                    "NODE_CA",
	RoleTLS:                       "TLS",
	RoleLegalIdentity:             "LEGAL_IDENTITY",
	RoleConfidentialLegalIdentity: "CONFIDENTIAL_LEGAL_IDENTITY",
	RoleNetworkParameters:         "NETWORK_PARAMETERS",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) extension() (pkix.Extension, error) {
	value, err := asn1.Marshal(int(r))
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: RoleExtensionOID, Value: value}, nil
}

// RoleOf returns the role recorded in cert. The second result is false if the extension is absent or unreadable.
func RoleOf(cert *x509.Certificate) (Role, bool) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(RoleExtensionOID) {
			continue
		}
		var value int
		rest, err := asn1.Unmarshal(ext.Value, &value)
		if err != nil || len(rest) > 0 {
			return 0, false
		}
		return Role(value), true
	}
	return 0, false
}

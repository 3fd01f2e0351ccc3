package config

// Development credentials and well-known names.
//
// WARNING: every value in this file is public. The passwords protect files that
// only ever hold development identities issued by the bundled dev CA. They are
// not secrets, are never rotated and must not be reused for production material.
const (
	// Bundled development CA (PKCS#12).
	DevCAStorePassword      = "devcastorepass"
	DevRootCAAlias          = "root-ca"
	DevIntermediateCAAlias  = "intermediate-ca"
	DevNodeKeyStorePassword = "devstorepass"
	DevKeyEntryPassword     = "devkeypass"
	DevTrustStorePassword   = "devtrustpass"

	// The distributed service keystore shares the node keystore password.
	DevDistributedServiceStorePassword = DevNodeKeyStorePassword

	NodeIdentityAliasPrefix         = "identity"
	DistributedNotaryAliasPrefix    = "distributed-notary"
	NodeIdentityAlias               = NodeIdentityAliasPrefix + "-private-key"
	DistributedNotaryPrivateAlias   = DistributedNotaryAliasPrefix + "-private-key"
	DistributedNotaryCompositeAlias = DistributedNotaryAliasPrefix + "-composite-key"
	TrustedRootAlias                = DevRootCAAlias

	CertificatesDirName        = "certificates"
	NodeKeyStoreFileName       = "nodekeystore.ks"
	DistributedServiceFileName = "distributedService.ks"
	TrustStoreFileName         = "truststore.ks"

	// DefaultNotaryThreshold lets any single cluster member act as the whole
	// distributed identity.
	DefaultNotaryThreshold = 1
)

// Package jwks handles JSON Web Key Sets (RFC 7517) on the relying party side.
//
// RemoteKeySet downloads a provider's jwks_uri and resolves RSA public keys by
// key id, which is what ID token signature verification needs. KeyPair
// generates local RS256 keys and publishes them as JWKs, used for tokens this
// application mints itself (development login) and for test identity providers.
//
//	keys := jwks.NewRemoteKeySet(md.JwksURI, jwks.WithHTTPClient(client))
//	publicKey, err := keys.Key(ctx, kid)
package jwks

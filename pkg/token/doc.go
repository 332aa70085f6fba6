// Package token performs the OAuth 2.0 authorization code exchange with PKCE
// and handles the returned ID token.
//
//	exchanger := token.NewExchanger(token.WithHTTPClient(client))
//	resp, err := exchanger.RequestToken(ctx, provider, md, code, verifier)
//	claims, err := token.DecodeIDToken(resp.IDToken)
//	userInfo := exchanger.RequestUserInfo(ctx, md, resp.AccessToken) // nil on failure
//
// DecodeIDToken does not check the signature. JWKSVerifier adds signature,
// issuer, audience and expiry checks against the provider's jwks_uri.
package token

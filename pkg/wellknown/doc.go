// Package wellknown resolves OpenID Connect discovery documents.
//
// A Resolver issues GET {authority}/.well-known/openid-configuration the first
// time a provider key is requested and serves every later request from its
// cache. Documents are treated as static per deployment, so entries never
// expire.
//
//	resolver := wellknown.NewResolver(wellknown.WithHTTPClient(client))
//	md, err := resolver.FetchMetadata(ctx, provider)
//	if err != nil {
//		// errors.IsCode(err, errors.ErrCodeMetadataFetch)
//	}
//	fmt.Println(md.AuthorizationEndpoint)
package wellknown

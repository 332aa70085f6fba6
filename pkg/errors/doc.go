// Package errors provides structured error handling with error codes.
//
// Every failure of the OIDC login flow surfaces as an *Error carrying one of
// the ErrorCode values below, so the HTTP layer can map it to a status code
// and the login screen can show its message verbatim.
//
// # Basic Usage
//
//	err := errors.UnknownProvider("google")
//	if errors.IsCode(err, errors.ErrCodeUnknownProvider) {
//		// render the login page with errors.GetMessage(err)
//	}
//
//	// Wrap an existing error
//	err := errors.Wrap(httpErr, errors.ErrCodeMetadataFetch, "failed to load OpenID configuration")
//
// # Error Codes
//
// Login flow:
//   - ErrCodeUnknownProvider
//   - ErrCodeMetadataFetch
//   - ErrCodeAuthorization
//   - ErrCodeInvalidCallback
//   - ErrCodeStateMismatch
//   - ErrCodeIncompleteTokenResponse
//   - ErrCodeTokenExchange
//   - ErrCodeInvalidIDToken
//
// Generic:
//   - ErrCodeInternal
//   - ErrCodeInvalidInput
//   - ErrCodeNotFound
//   - ErrCodeUnauthorized
//   - ErrCodeForbidden
package errors

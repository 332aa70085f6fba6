package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// ChallengeMethod represents the PKCE challenge method
type ChallengeMethod string

const (
	// ChallengePlain represents the "plain" challenge method (not recommended for production)
	ChallengePlain ChallengeMethod = "plain"
	// ChallengeS256 represents the "S256" challenge method (recommended)
	ChallengeS256 ChallengeMethod = "S256"
)

const (
	// VerifierLength is the length of generated code verifiers
	VerifierLength = 64
	// StateLength is the length of generated anti-CSRF state values
	StateLength = 32
)

// unreserved is the RFC 3986 unreserved character set (66 symbols)
const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateRandomString draws length bytes from crypto/rand and maps each
// byte onto the unreserved alphabet. The modulo bias of 256 over 66 symbols
// is accepted.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = unreserved[int(b)%len(unreserved)]
	}
	return string(out), nil
}

// GenerateCodeVerifier generates a code verifier of VerifierLength characters
func GenerateCodeVerifier() (string, error) {
	return GenerateRandomString(VerifierLength)
}

// GenerateState generates an anti-CSRF state value of StateLength characters
func GenerateState() (string, error) {
	return GenerateRandomString(StateLength)
}

// CreateCodeChallenge returns the S256 challenge of verifier:
// BASE64URL(SHA256(verifier)) without padding, as in RFC 7636 section 4.2.
func CreateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidateCodeVerifier validates that a code verifier matches the given code challenge
func ValidateCodeVerifier(verifier string, challenge string, method ChallengeMethod) error {
	if !IsValidChallengeMethod(string(method)) {
		return fmt.Errorf("unsupported challenge method: %s", method)
	}

	if verifier == "" {
		return fmt.Errorf("code verifier cannot be empty")
	}

	if challenge == "" {
		return fmt.Errorf("code challenge cannot be empty")
	}

	// Validate verifier length (43-128 characters)
	if len(verifier) < 43 || len(verifier) > 128 {
		return fmt.Errorf("code verifier must be between 43 and 128 characters")
	}

	if !isValidCodeVerifier(verifier) {
		return fmt.Errorf("code verifier contains invalid characters")
	}

	expected := verifier
	if method == ChallengeS256 {
		expected = CreateCodeChallenge(verifier)
	}
	if expected != challenge {
		return fmt.Errorf("code verifier does not match challenge")
	}

	return nil
}

// IsValidChallengeMethod checks if the given challenge method is valid
func IsValidChallengeMethod(method string) bool {
	return method == string(ChallengePlain) || method == string(ChallengeS256)
}

// isValidCodeVerifier checks if the code verifier contains only allowed characters
func isValidCodeVerifier(verifier string) bool {
	for _, char := range verifier {
		if !strings.ContainsRune(unreserved, char) {
			return false
		}
	}
	return true
}

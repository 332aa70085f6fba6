package pkce

import (
	"strings"
	"testing"
)

// RFC 7636 appendix B
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestGenerateRandomString(t *testing.T) {
	for _, length := range []int{1, StateLength, 43, VerifierLength, 128} {
		value, err := GenerateRandomString(length)
		if err != nil {
			t.Fatalf("GenerateRandomString(%d) failed: %v", length, err)
		}

		if len(value) != length {
			t.Errorf("GenerateRandomString(%d) returned %d characters", length, len(value))
		}

		if !isValidCodeVerifier(value) {
			t.Errorf("GenerateRandomString(%d) contains invalid characters: %s", length, value)
		}
	}
}

func TestGenerateRandomStringDiffers(t *testing.T) {
	first, err := GenerateRandomString(VerifierLength)
	if err != nil {
		t.Fatalf("GenerateRandomString() failed: %v", err)
	}
	second, err := GenerateRandomString(VerifierLength)
	if err != nil {
		t.Fatalf("GenerateRandomString() failed: %v", err)
	}

	if first == second {
		t.Errorf("two successive calls returned the same value: %s", first)
	}
}

func TestGenerateRandomStringInvalidLength(t *testing.T) {
	if _, err := GenerateRandomString(0); err == nil {
		t.Error("GenerateRandomString(0) should fail")
	}
	if _, err := GenerateRandomString(-5); err == nil {
		t.Error("GenerateRandomString(-5) should fail")
	}
}

func TestGenerateCodeVerifierAndState(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier() failed: %v", err)
	}
	if len(verifier) != VerifierLength {
		t.Errorf("verifier length: got %d, want %d", len(verifier), VerifierLength)
	}

	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() failed: %v", err)
	}
	if len(state) != StateLength {
		t.Errorf("state length: got %d, want %d", len(state), StateLength)
	}
}

func TestCreateCodeChallenge(t *testing.T) {
	if got := CreateCodeChallenge(rfcVerifier); got != rfcChallenge {
		t.Errorf("CreateCodeChallenge(rfc vector) = %s, want %s", got, rfcChallenge)
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier() failed: %v", err)
	}

	first := CreateCodeChallenge(verifier)
	second := CreateCodeChallenge(verifier)
	if first != second {
		t.Errorf("challenge is not deterministic: %s != %s", first, second)
	}

	if strings.ContainsAny(first, "+/=") {
		t.Errorf("challenge is not base64url without padding: %s", first)
	}

	if len(first) != 43 {
		t.Errorf("challenge length: got %d, want 43", len(first))
	}
}

func TestValidateCodeVerifier(t *testing.T) {
	tests := []struct {
		name      string
		verifier  string
		challenge string
		method    ChallengeMethod
		wantErr   bool
	}{
		{"S256 rfc vector", rfcVerifier, rfcChallenge, ChallengeS256, false},
		{"plain match", rfcVerifier, rfcVerifier, ChallengePlain, false},
		{"S256 mismatch", rfcVerifier, "wrong", ChallengeS256, true},
		{"empty verifier", "", rfcChallenge, ChallengeS256, true},
		{"empty challenge", rfcVerifier, "", ChallengeS256, true},
		{"too short", "short", rfcChallenge, ChallengeS256, true},
		{"invalid characters", strings.Repeat("a", 42) + "!", rfcChallenge, ChallengeS256, true},
		{"unsupported method", rfcVerifier, rfcChallenge, ChallengeMethod("S512"), true},
		{"lowercase method", rfcVerifier, rfcChallenge, ChallengeMethod("s256"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCodeVerifier(tt.verifier, tt.challenge, tt.method)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCodeVerifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidChallengeMethod(t *testing.T) {
	if !IsValidChallengeMethod("S256") || !IsValidChallengeMethod("plain") {
		t.Error("S256 and plain must be valid")
	}
	if IsValidChallengeMethod("s256") {
		t.Error("challenge methods are case sensitive")
	}
}

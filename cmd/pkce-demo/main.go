package main

import (
	"fmt"
	"log"

	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/pkce"
)

// RFC 7636 appendix B
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func main() {
	fmt.Println("=== PKCE Demo ===")

	// 1. Check the reference vector
	challenge := pkce.CreateCodeChallenge(rfcVerifier)
	if challenge != rfcChallenge {
		log.Fatalf("RFC 7636 vector mismatch: got %s, want %s", challenge, rfcChallenge)
	}
	fmt.Println("✓ RFC 7636 appendix B vector matches")
	fmt.Printf("  Code Verifier: %s\n", rfcVerifier)
	fmt.Printf("  Code Challenge: %s\n", challenge)

	// 2. Generate fresh login parameters
	codeVerifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		log.Fatal("Failed to generate code verifier:", err)
	}
	state, err := pkce.GenerateState()
	if err != nil {
		log.Fatal("Failed to generate state:", err)
	}
	codeChallenge := pkce.CreateCodeChallenge(codeVerifier)

	fmt.Printf("✓ Generated PKCE parameters:\n")
	fmt.Printf("  Code Verifier: %s\n", codeVerifier)
	fmt.Printf("  Code Challenge: %s\n", codeChallenge)
	fmt.Printf("  Challenge Method: %s\n", pkce.ChallengeS256)
	fmt.Printf("  State: %s\n", state)

	// 3. Verify the pair the way an authorization server would
	if err := pkce.ValidateCodeVerifier(codeVerifier, codeChallenge, pkce.ChallengeS256); err != nil {
		log.Fatal("Generated verifier does not validate:", err)
	}
	fmt.Println("✓ Code verifier validates against its challenge")

	other, err := pkce.GenerateCodeVerifier()
	if err != nil {
		log.Fatal("Failed to generate code verifier:", err)
	}
	if err := pkce.ValidateCodeVerifier(other, codeChallenge, pkce.ChallengeS256); err == nil {
		log.Fatal("Unrelated verifier unexpectedly validated")
	}
	fmt.Println("✓ Unrelated verifier is rejected")

	fmt.Println("\n=== PKCE Demo Completed Successfully ===")
}

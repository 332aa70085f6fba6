package jwks

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JWKS represents a JSON Web Key Set as defined in RFC 7517
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key as defined in RFC 7517
type JWK struct {
	// Key Type - "RSA" for RSA keys
	Kty string `json:"kty"`

	// Public Key Use - "sig" for signature
	Use string `json:"use,omitempty"`

	// Key ID - unique identifier for this key
	Kid string `json:"kid"`

	// Algorithm - "RS256" for RSA with SHA-256
	Alg string `json:"alg,omitempty"`

	// RSA public key modulus (base64url encoded)
	N string `json:"n"`

	// RSA public key exponent (base64url encoded)
	E string `json:"e"`
}

// RSAPublicKey decodes the RSA public key of a JWK
func (k JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q for kid %q", k.Kty, k.Kid)
	}

	n, err := DecodeRSAPublicKeyModulus(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus for kid %q: %w", k.Kid, err)
	}

	e, err := DecodeRSAPublicKeyExponent(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent for kid %q: %w", k.Kid, err)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

// KeyPair is an RSA signing key with its key id
type KeyPair struct {
	Kid        string
	Alg        string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	CreatedAt  time.Time
}

// NewKeyPair generates an RS256 key pair with a random key id
func NewKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := GenerateRSAKeyPair(bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	return &KeyPair{
		Kid:        uuid.New().String(),
		Alg:        "RS256",
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ToJWK converts a KeyPair to a JWK (public key only)
func (kp *KeyPair) ToJWK() JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.Kid,
		Alg: kp.Alg,
		N:   EncodeRSAPublicKeyModulus(kp.PublicKey),
		E:   EncodeRSAPublicKeyExponent(kp.PublicKey),
	}
}

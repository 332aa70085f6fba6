package jwks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size
func GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodeRSAPublicKeyModulus encodes the RSA public key modulus as base64url
func EncodeRSAPublicKeyModulus(publicKey *rsa.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())
}

// EncodeRSAPublicKeyExponent encodes the RSA public key exponent as base64url
func EncodeRSAPublicKeyExponent(publicKey *rsa.PublicKey) string {
	exponentBytes := big.NewInt(int64(publicKey.E)).Bytes()
	return base64.RawURLEncoding.EncodeToString(exponentBytes)
}

// DecodeRSAPublicKeyModulus decodes a base64url modulus
func DecodeRSAPublicKeyModulus(n string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty modulus")
	}
	return new(big.Int).SetBytes(b), nil
}

// DecodeRSAPublicKeyExponent decodes a base64url exponent
func DecodeRSAPublicKeyExponent(e string) (int, error) {
	b, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 || len(b) > 4 {
		return 0, fmt.Errorf("exponent must be 1 to 4 bytes, got %d", len(b))
	}
	exp := new(big.Int).SetBytes(b)
	if exp.Sign() <= 0 {
		return 0, fmt.Errorf("exponent must be positive")
	}
	return int(exp.Int64()), nil
}

package token

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TokenResponse is the token endpoint response of an authorization code grant
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	// ExpiresIn is the access token lifetime in seconds, nil when the
	// provider did not send one
	ExpiresIn *int64 `json:"expires_in,omitempty"`
}

// Missing lists the required tokens absent from the response
func (r *TokenResponse) Missing() []string {
	var missing []string
	if r.IDToken == "" {
		missing = append(missing, "id_token")
	}
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	return missing
}

// UnmarshalJSON accepts expires_in as a number or a numeric string
func (r *TokenResponse) UnmarshalJSON(data []byte) error {
	type alias TokenResponse
	aux := &struct {
		*alias
		ExpiresIn json.RawMessage `json:"expires_in,omitempty"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	r.ExpiresIn = nil
	if len(aux.ExpiresIn) == 0 || string(aux.ExpiresIn) == "null" {
		return nil
	}

	raw := string(aux.ExpiresIn)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %s: %w", aux.ExpiresIn, err)
	}
	r.ExpiresIn = &seconds
	return nil
}

// errorResponse is the RFC 6749 section 5.2 error body
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

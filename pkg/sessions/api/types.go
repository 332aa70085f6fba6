package api

import "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/sessions"

// ProviderResponse is one entry of GET /providers
type ProviderResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// MeResponse describes the current session
type MeResponse struct {
	Authenticated bool                   `json:"authenticated"`
	Status        sessions.Status        `json:"status"`
	Provider      string                 `json:"provider,omitempty"`
	Profile       map[string]interface{} `json:"profile,omitempty"`
	UserInfo      map[string]interface{} `json:"userInfo,omitempty"`
	ExpiresAt     string                 `json:"expiresAt,omitempty"`
}

// DevLoginRequest is the optional body of POST /dev-login
type DevLoginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

package sessions

import "time"

// Status is the authentication state reported by a Manager
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
)

// DevProviderKey is the pseudo-provider of sessions created by DevLogin
const DevProviderKey = "dev"

// Tokens are the tokens returned by the token endpoint together with the
// time they were received.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	ExpiresIn    *int64    `json:"expiresIn,omitempty"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// ExpiresAt returns when the tokens expire. ok is false when the token
// response carried no expires_in.
func (t Tokens) ExpiresAt() (expiresAt time.Time, ok bool) {
	if t.ExpiresIn == nil {
		return time.Time{}, false
	}
	return t.ReceivedAt.Add(time.Duration(*t.ExpiresIn) * time.Second), true
}

// Session is the established login
type Session struct {
	ProviderKey string                 `json:"providerKey"`
	Tokens      Tokens                 `json:"tokens"`
	Profile     map[string]interface{} `json:"profile"`
	UserInfo    map[string]interface{} `json:"userInfo,omitempty"`
}

// Active reports whether the session is still valid at now
func (s *Session) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	expiresAt, ok := s.Tokens.ExpiresAt()
	if !ok {
		return true
	}
	return now.Before(expiresAt)
}

// Subject returns the "sub" claim of the profile
func (s *Session) Subject() string {
	if s == nil {
		return ""
	}
	sub, _ := s.Profile["sub"].(string)
	return sub
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		ProviderKey: s.ProviderKey,
		Tokens:      s.Tokens,
		Profile:     copyClaims(s.Profile),
		UserInfo:    copyClaims(s.UserInfo),
	}
	if s.Tokens.ExpiresIn != nil {
		expiresIn := *s.Tokens.ExpiresIn
		out.Tokens.ExpiresIn = &expiresIn
	}
	return out
}

// copyClaims deep copies JSON-shaped claims
func copyClaims(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyClaim(v)
	}
	return dst
}

func copyClaim(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		return copyClaims(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = copyClaim(v[i])
		}
		return out
	default:
		return v
	}
}

// LoginRedirect is the first phase of a login: the caller sends the user
// agent to URL and keeps Scope to resume the flow at the callback.
type LoginRedirect struct {
	URL   string `json:"url"`
	Scope string `json:"scope"`
}

// Listener receives a snapshot of the session on every transition, or nil
// once the session is gone.
type Listener func(session *Session)

// Package credentials owns carrier identities and the lifecycle of the access
// tokens derived from them.
package credentials

import (
	"errors"
	"fmt"
	"time"
)

// Scheme tags the authentication variant of an Identity.
type Scheme string

const (
	SchemeStaticToken             Scheme = "static-token"
	SchemeLoginJWT                Scheme = "login-jwt"
	SchemeOAuth2ClientCredentials Scheme = "oauth2-client-credentials"
	SchemeFormCredentials         Scheme = "form-credentials"
)

// ParseScheme validates a scheme tag read from configuration.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeStaticToken, SchemeLoginJWT, SchemeOAuth2ClientCredentials, SchemeFormCredentials:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("unknown auth scheme %q", s)
	}
}

// Identity is a named credential set for one carrier service tier.
// Which secret fields are used depends on Scheme.
type Identity struct {
	Carrier string
	Tier    string
	Scheme  Scheme

	Token string // static-token

	Username string // login-jwt, form-credentials
	Password string

	ClientID     string // oauth2-client-credentials
	ClientSecret string
	Scopes       []string

	BaseURL    string
	AuthURL    string
	DefaultTTL time.Duration // used when the carrier omits a token lifetime
}

// Key uniquely identifies the identity within a store.
func (i Identity) Key() string {
	return i.Carrier + "/" + i.Tier
}

// AccessToken is a derived, expiring credential.
type AccessToken struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  string    `json:"identity"`
}

// UsableAt reports whether the token may be handed out at now, i.e. it is not
// within margin of its expiry.
func (t AccessToken) UsableAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// Credential is what an adapter embeds in a carrier request.
type Credential struct {
	Scheme    Scheme
	Token     string
	Username  string
	Password  string
	ExpiresAt time.Time
}

// AuthError reports a failed login or token refresh.
type AuthError struct {
	Carrier string
	Cause   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Carrier, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// ErrUnknownIdentity indicates no identity is registered for a carrier.
var ErrUnknownIdentity = errors.New("unknown carrier identity")

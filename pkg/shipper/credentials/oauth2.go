package credentials

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Authenticator fetches tokens from a carrier's OAuth2 token endpoint
// using the client-credentials grant. Caching is left to the Store.
type OAuth2Authenticator struct {
	HTTPClient *http.Client
}

// Authenticate requests a fresh token for id.
func (a *OAuth2Authenticator) Authenticate(ctx context.Context, id Identity) (*LoginResult, error) {
	if id.ClientID == "" || id.ClientSecret == "" || id.AuthURL == "" {
		return nil, errors.New("oauth2 client id, secret and token url are required")
	}

	cfg := clientcredentials.Config{
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		TokenURL:     id.AuthURL,
		Scopes:       id.Scopes,
	}

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{Token: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		res.TTL = time.Until(tok.Expiry)
	}
	return res, nil
}

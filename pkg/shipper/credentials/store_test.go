package credentials_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper/cache"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(clock *fakeClock) *credentials.Store {
	cfg := credentials.Config{SafetyMargin: 5 * time.Minute}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	return credentials.NewStore(cfg, cache.NewMemory(64, 24*time.Hour), otelzap.New(zap.NewNop()))
}

func loginIdentity() credentials.Identity {
	return credentials.Identity{
		Carrier:  "xpressbees",
		Tier:     "surface",
		Scheme:   credentials.SchemeLoginJWT,
		Username: "ops@example.com",
		Password: "secret",
	}
}

func TestStore_StaticAndFormSchemes(t *testing.T) {
	store := newStore(nil)
	ctx := context.Background()

	cred, err := store.Credential(ctx, credentials.Identity{
		Carrier: "delhivery", Tier: "surface", Scheme: credentials.SchemeStaticToken, Token: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Token)

	cred, err = store.Credential(ctx, credentials.Identity{
		Carrier: "ecomexpress", Tier: "standard", Scheme: credentials.SchemeFormCredentials,
		Username: "user", Password: "pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Username)
	assert.Equal(t, "pass", cred.Password)

	_, err = store.Credential(ctx, credentials.Identity{Carrier: "delhivery", Scheme: credentials.SchemeStaticToken})
	var authErr *credentials.AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestStore_ConcurrentCallersShareOneRefresh(t *testing.T) {
	store := newStore(nil)
	var logins atomic.Int32
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			logins.Add(1)
			time.Sleep(50 * time.Millisecond)
			return &credentials.LoginResult{Token: "jwt-1", TTL: time.Hour}, nil
		}))

	id := loginIdentity()
	const callers = 25

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := store.Credential(context.Background(), id)
			tokens[i], errs[i] = cred.Token, err
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), logins.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "jwt-1", tokens[i])
	}
}

func TestStore_RefreshesInsideSafetyMargin(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := newStore(clock)

	var logins atomic.Int32
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			n := logins.Add(1)
			return &credentials.LoginResult{Token: fmt.Sprintf("jwt-%d", n), TTL: time.Hour}, nil
		}))

	id := loginIdentity()
	ctx := context.Background()

	cred, err := store.Credential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", cred.Token)

	clock.Advance(50 * time.Minute)
	cred, err = store.Credential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", cred.Token)

	clock.Advance(6 * time.Minute)
	cred, err = store.Credential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", cred.Token)
	assert.Equal(t, int32(2), logins.Load())
}

func TestStore_LifetimeFromJWTExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newStore(clock)

	exp := clock.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			return &credentials.LoginResult{Token: signed}, nil
		}))

	id := loginIdentity()
	id.DefaultTTL = 10 * time.Minute

	cred, err := store.Credential(context.Background(), id)
	require.NoError(t, err)
	assert.WithinDuration(t, exp, cred.ExpiresAt, time.Second)
}

func TestStore_LifetimeFallsBackToIdentityDefault(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newStore(clock)
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			return &credentials.LoginResult{Token: "opaque"}, nil
		}))

	id := loginIdentity()
	id.DefaultTTL = 30 * time.Minute

	cred, err := store.Credential(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), cred.ExpiresAt)
}

func TestStore_ShortLivedTokenIsRejected(t *testing.T) {
	store := newStore(nil)
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			return &credentials.LoginResult{Token: "jwt", TTL: 4 * time.Minute}, nil
		}))

	_, err := store.Credential(context.Background(), loginIdentity())
	var authErr *credentials.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "xpressbees", authErr.Carrier)
}

func TestStore_LoginFailure(t *testing.T) {
	store := newStore(nil)
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			return nil, errors.New("invalid password")
		}))

	_, err := store.Credential(context.Background(), loginIdentity())
	var authErr *credentials.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "invalid password")
}

func TestStore_InvalidateForcesLogin(t *testing.T) {
	store := newStore(nil)
	var logins atomic.Int32
	var refreshed []string
	store.OnRefresh(func(carrier string) { refreshed = append(refreshed, carrier) })
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			n := logins.Add(1)
			return &credentials.LoginResult{Token: fmt.Sprintf("jwt-%d", n), TTL: time.Hour}, nil
		}))

	id := loginIdentity()
	ctx := context.Background()

	_, err := store.Credential(ctx, id)
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, id))

	cred, err := store.Credential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jwt-2", cred.Token)
	assert.Equal(t, []string{"xpressbees", "xpressbees"}, refreshed)
}

func TestStore_CancelledWaiterDoesNotFailFlight(t *testing.T) {
	store := newStore(nil)
	release := make(chan struct{})
	store.RegisterAuthenticator("xpressbees", credentials.AuthenticatorFunc(
		func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
			<-release
			return &credentials.LoginResult{Token: "jwt", TTL: time.Hour}, nil
		}))

	id := loginIdentity()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := store.Credential(ctx, id)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	cred, err := store.Credential(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "jwt", cred.Token)
}

func TestStore_IdentityFallsBackToDefaultTier(t *testing.T) {
	store := newStore(nil)
	store.RegisterIdentity(credentials.Identity{Carrier: "delhivery", Tier: "surface", Scheme: credentials.SchemeStaticToken, Token: "a"})
	store.RegisterIdentity(credentials.Identity{Carrier: "delhivery", Tier: "express", Scheme: credentials.SchemeStaticToken, Token: "b"})

	id, err := store.Identity("delhivery", "express")
	require.NoError(t, err)
	assert.Equal(t, "b", id.Token)

	id, err = store.Identity("delhivery", "")
	require.NoError(t, err)
	assert.Equal(t, "a", id.Token)

	id, err = store.Identity("delhivery", "overnight")
	require.NoError(t, err)
	assert.Equal(t, "surface", id.Tier)

	_, err = store.Identity("bluedart", "")
	assert.ErrorIs(t, err, credentials.ErrUnknownIdentity)
}

func TestOAuth2Authenticator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"oauth-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	store := newStore(nil)
	id := credentials.Identity{
		Carrier:      "bluedart",
		Tier:         "apex",
		Scheme:       credentials.SchemeOAuth2ClientCredentials,
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      server.URL,
	}

	cred, err := store.Credential(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "oauth-token", cred.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 5*time.Second)
}

func TestParseScheme(t *testing.T) {
	s, err := credentials.ParseScheme("login-jwt")
	require.NoError(t, err)
	assert.Equal(t, credentials.SchemeLoginJWT, s)

	_, err = credentials.ParseScheme("basic")
	assert.Error(t, err)
}

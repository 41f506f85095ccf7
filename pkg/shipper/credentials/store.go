package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tournevent/shipgate/pkg/shipper/cache"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoginResult is what a carrier login or token endpoint returned.
// TTL is zero when the carrier did not state a lifetime.
type LoginResult struct {
	Token string
	TTL   time.Duration
}

// Authenticator performs a carrier's login call.
type Authenticator interface {
	Authenticate(ctx context.Context, id Identity) (*LoginResult, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, id Identity) (*LoginResult, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, id Identity) (*LoginResult, error) {
	return f(ctx, id)
}

// Config holds credential store configuration.
type Config struct {
	SafetyMargin   time.Duration    // tokens are not handed out this close to expiry
	DefaultTTL     time.Duration    // fallback lifetime when neither carrier nor identity states one
	RefreshTimeout time.Duration    // bound on a single login call
	Clock          func() time.Time // defaults to time.Now
}

// Store hands out credentials per identity, caching derived tokens and
// coalescing concurrent refreshes for the same identity.
type Store struct {
	cfg    Config
	cache  cache.Cache
	logger *otelzap.Logger
	now    func() time.Time

	mu             sync.RWMutex
	identities     map[string]Identity
	defaultTier    map[string]string
	authenticators map[string]Authenticator
	oauth          Authenticator
	onRefresh      func(carrier string)

	group singleflight.Group
}

// NewStore creates a credential store backed by c.
func NewStore(cfg Config, c cache.Cache, logger *otelzap.Logger) *Store {
	if cfg.SafetyMargin == 0 {
		cfg.SafetyMargin = 5 * time.Minute
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Store{
		cfg:            cfg,
		cache:          c,
		logger:         logger,
		now:            now,
		identities:     make(map[string]Identity),
		defaultTier:    make(map[string]string),
		authenticators: make(map[string]Authenticator),
		oauth:          &OAuth2Authenticator{},
	}
}

// RegisterIdentity adds an identity. The first identity registered for a
// carrier becomes its default tier.
func (s *Store) RegisterIdentity(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.Key()] = id
	if _, ok := s.defaultTier[id.Carrier]; !ok {
		s.defaultTier[id.Carrier] = id.Tier
	}
}

// RegisterAuthenticator sets the login call used for a carrier's login-jwt
// identities. For oauth2 identities it overrides the built-in client.
func (s *Store) RegisterAuthenticator(carrier string, a Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticators[carrier] = a
}

// OnRefresh installs a hook called after every successful token refresh.
func (s *Store) OnRefresh(fn func(carrier string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// Identity returns the identity for a carrier and tier. An empty or unknown
// tier falls back to the carrier's default tier.
func (s *Store) Identity(carrier, tier string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tier != "" {
		if id, ok := s.identities[carrier+"/"+tier]; ok {
			return id, nil
		}
	}
	def, ok := s.defaultTier[carrier]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, carrier)
	}
	return s.identities[carrier+"/"+def], nil
}

// Credential returns a usable credential for id, refreshing the cached token
// when it is absent or within the safety margin of expiry.
func (s *Store) Credential(ctx context.Context, id Identity) (Credential, error) {
	switch id.Scheme {
	case SchemeStaticToken:
		if id.Token == "" {
			return Credential{}, &AuthError{Carrier: id.Carrier, Cause: errors.New("static token not configured")}
		}
		return Credential{Scheme: id.Scheme, Token: id.Token}, nil

	case SchemeFormCredentials:
		if id.Username == "" || id.Password == "" {
			return Credential{}, &AuthError{Carrier: id.Carrier, Cause: errors.New("form credentials not configured")}
		}
		return Credential{Scheme: id.Scheme, Username: id.Username, Password: id.Password}, nil

	case SchemeLoginJWT, SchemeOAuth2ClientCredentials:
		tok, err := s.token(ctx, id)
		if err != nil {
			return Credential{}, err
		}
		return Credential{Scheme: id.Scheme, Token: tok.Value, ExpiresAt: tok.ExpiresAt}, nil

	default:
		return Credential{}, &AuthError{Carrier: id.Carrier, Cause: fmt.Errorf("unsupported auth scheme %q", id.Scheme)}
	}
}

// Invalidate evicts the cached token for id, forcing the next Credential call
// to log in again.
func (s *Store) Invalidate(ctx context.Context, id Identity) error {
	if id.Scheme != SchemeLoginJWT && id.Scheme != SchemeOAuth2ClientCredentials {
		return nil
	}
	s.logger.Info("Invalidating carrier token",
		zap.String("carrier", id.Carrier),
		zap.String("tier", id.Tier),
	)
	return s.cache.Delete(ctx, cacheKey(id))
}

func (s *Store) token(ctx context.Context, id Identity) (AccessToken, error) {
	if tok, ok := s.cached(ctx, id); ok {
		return tok, nil
	}

	ch := s.group.DoChan(id.Key(), func() (interface{}, error) {
		// The refresh outlives any single waiter so one cancelled caller does
		// not fail the others sharing the flight.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RefreshTimeout)
		defer cancel()

		if tok, ok := s.cached(fctx, id); ok {
			return tok, nil
		}
		return s.refresh(fctx, id)
	})

	select {
	case <-ctx.Done():
		return AccessToken{}, fmt.Errorf("waiting for %s token: %w", id.Carrier, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	}
}

func (s *Store) cached(ctx context.Context, id Identity) (AccessToken, bool) {
	b, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Token cache read failed", zap.String("carrier", id.Carrier), zap.Error(err))
		}
		return AccessToken{}, false
	}

	var tok AccessToken
	if err := json.Unmarshal(b, &tok); err != nil {
		s.logger.Warn("Discarding malformed cached token", zap.String("carrier", id.Carrier), zap.Error(err))
		return AccessToken{}, false
	}
	if !tok.UsableAt(s.now(), s.cfg.SafetyMargin) {
		return AccessToken{}, false
	}
	return tok, true
}

func (s *Store) refresh(ctx context.Context, id Identity) (AccessToken, error) {
	s.mu.RLock()
	auth, ok := s.authenticators[id.Carrier]
	if !ok && id.Scheme == SchemeOAuth2ClientCredentials {
		auth, ok = s.oauth, true
	}
	hook := s.onRefresh
	s.mu.RUnlock()

	if !ok {
		return AccessToken{}, &AuthError{Carrier: id.Carrier, Cause: errors.New("no login call registered")}
	}

	res, err := auth.Authenticate(ctx, id)
	if err != nil {
		s.logger.Error("Carrier login failed",
			zap.String("carrier", id.Carrier),
			zap.String("tier", id.Tier),
			zap.Error(err),
		)
		return AccessToken{}, &AuthError{Carrier: id.Carrier, Cause: err}
	}
	if res == nil || res.Token == "" {
		return AccessToken{}, &AuthError{Carrier: id.Carrier, Cause: errors.New("login returned an empty token")}
	}

	now := s.now()
	ttl := s.lifetime(id, res, now)
	if ttl <= s.cfg.SafetyMargin {
		return AccessToken{}, &AuthError{
			Carrier: id.Carrier,
			Cause:   fmt.Errorf("token lifetime %s is within the %s safety margin", ttl, s.cfg.SafetyMargin),
		}
	}

	tok := AccessToken{
		Value:     res.Token,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Identity:  id.Key(),
	}

	b, err := json.Marshal(tok)
	if err == nil {
		err = s.cache.Set(ctx, cacheKey(id), b, ttl)
	}
	if err != nil {
		s.logger.Warn("Token cache write failed", zap.String("carrier", id.Carrier), zap.Error(err))
	}

	if hook != nil {
		hook(id.Carrier)
	}
	s.logger.Info("Refreshed carrier token",
		zap.String("carrier", id.Carrier),
		zap.String("tier", id.Tier),
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return tok, nil
}

// lifetime picks the token TTL: the carrier's stated lifetime, then the JWT
// exp claim, then the identity default, then the store default.
func (s *Store) lifetime(id Identity, res *LoginResult, now time.Time) time.Duration {
	if res.TTL > 0 {
		return res.TTL
	}
	if exp, ok := jwtExpiry(res.Token); ok {
		return exp.Sub(now)
	}
	if id.DefaultTTL > 0 {
		return id.DefaultTTL
	}
	return s.cfg.DefaultTTL
}

func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func cacheKey(id Identity) string {
	return "token:" + id.Key()
}

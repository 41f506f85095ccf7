package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

type identityEntry struct {
	Carrier      string        `mapstructure:"carrier"`
	Tier         string        `mapstructure:"tier"`
	Scheme       string        `mapstructure:"scheme"`
	Token        string        `mapstructure:"token"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Scopes       []string      `mapstructure:"scopes"`
	AuthURL      string        `mapstructure:"auth_url"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
}

// LoadIdentities reads the optional "identities" list from a YAML, JSON or
// TOML file, one entry per carrier and service tier.
func LoadIdentities(path string) ([]credentials.Identity, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read identity file %s: %w", path, err)
	}

	var entries []identityEntry
	if err := v.UnmarshalKey("identities", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse identities: %w", err)
	}

	out := make([]credentials.Identity, 0, len(entries))
	for i, e := range entries {
		if e.Carrier == "" || e.Tier == "" {
			return nil, fmt.Errorf("identity %d: carrier and tier are required", i)
		}
		scheme, err := credentials.ParseScheme(e.Scheme)
		if err != nil {
			return nil, fmt.Errorf("identity %d: %w", i, err)
		}
		out = append(out, credentials.Identity{
			Carrier:      strings.ToLower(e.Carrier),
			Tier:         e.Tier,
			Scheme:       scheme,
			Token:        e.Token,
			Username:     e.Username,
			Password:     e.Password,
			ClientID:     e.ClientID,
			ClientSecret: e.ClientSecret,
			Scopes:       e.Scopes,
			AuthURL:      e.AuthURL,
			DefaultTTL:   e.DefaultTTL,
		})
	}
	return out, nil
}

// Identities returns the identities configured through the environment, one
// per enabled carrier at its default tier.
func (c *Config) Identities() []credentials.Identity {
	var out []credentials.Identity
	if c.DelhiveryEnabled {
		out = append(out, credentials.Identity{
			Carrier: "delhivery",
			Tier:    c.DelhiveryTier,
			Scheme:  credentials.SchemeStaticToken,
			Token:   c.DelhiveryToken,
			BaseURL: c.DelhiveryBaseURL,
		})
	}
	if c.XpressbeesEnabled {
		out = append(out, credentials.Identity{
			Carrier:  "xpressbees",
			Tier:     c.XpressbeesTier,
			Scheme:   credentials.SchemeLoginJWT,
			Username: c.XpressbeesUsername,
			Password: c.XpressbeesPassword,
			BaseURL:  c.XpressbeesBaseURL,
		})
	}
	if c.BluedartEnabled {
		out = append(out, credentials.Identity{
			Carrier:      "bluedart",
			Tier:         c.BluedartTier,
			Scheme:       credentials.SchemeOAuth2ClientCredentials,
			ClientID:     c.BluedartClientID,
			ClientSecret: c.BluedartClientSecret,
			AuthURL:      c.BluedartAuthURL,
			BaseURL:      c.BluedartBaseURL,
		})
	}
	if c.EcomEnabled {
		out = append(out, credentials.Identity{
			Carrier:  "ecomexpress",
			Tier:     c.EcomTier,
			Scheme:   credentials.SchemeFormCredentials,
			Username: c.EcomUsername,
			Password: c.EcomPassword,
			BaseURL:  c.EcomBaseURL,
		})
	}
	return out
}

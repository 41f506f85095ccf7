package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/internal/config"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Equal(t, "110001", cfg.ProbePincode)
	assert.Equal(t, "PPD", cfg.EcomAWBType)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.DelhiveryEnabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CALL_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("XPRESSBEES_COURIER_IDS", "surface:1,express:6")
	t.Setenv("BLUEDART_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, map[string]string{"surface": "1", "express": "6"}, cfg.XpressbeesCourierIDs)
	assert.False(t, cfg.BluedartEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"zero attempts", "MAX_ATTEMPTS", "0"},
		{"bad awb series", "ECOMEXPRESS_AWB_TYPE", "XYZ"},
		{"bad port", "PORT", "70000"},
		{"unparsable duration", "CALL_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestIdentities(t *testing.T) {
	t.Setenv("DELHIVERY_TOKEN", "dl-token")
	t.Setenv("XPRESSBEES_USERNAME", "ops@example.com")
	t.Setenv("XPRESSBEES_PASSWORD", "secret")
	t.Setenv("ECOMEXPRESS_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	ids := cfg.Identities()
	require.Len(t, ids, 3)

	assert.Equal(t, "delhivery", ids[0].Carrier)
	assert.Equal(t, credentials.SchemeStaticToken, ids[0].Scheme)
	assert.Equal(t, "dl-token", ids[0].Token)

	assert.Equal(t, "xpressbees", ids[1].Carrier)
	assert.Equal(t, credentials.SchemeLoginJWT, ids[1].Scheme)
	assert.Equal(t, "ops@example.com", ids[1].Username)

	assert.Equal(t, "bluedart", ids[2].Carrier)
	assert.Equal(t, "express", ids[2].Tier)
	assert.Equal(t, credentials.SchemeOAuth2ClientCredentials, ids[2].Scheme)
}

func TestLoadIdentities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identities:
  - carrier: Delhivery
    tier: express
    scheme: static-token
    token: dl-express
  - carrier: xpressbees
    tier: express
    scheme: login-jwt
    username: express@example.com
    password: pw
    default_ttl: 45m
`), 0o600))

	ids, err := config.LoadIdentities(path)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	assert.Equal(t, "delhivery", ids[0].Carrier)
	assert.Equal(t, "express", ids[0].Tier)
	assert.Equal(t, "dl-express", ids[0].Token)
	assert.Equal(t, credentials.SchemeLoginJWT, ids[1].Scheme)
	assert.Equal(t, 45*time.Minute, ids[1].DefaultTTL)
}

func TestLoadIdentities_Invalid(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte(`
identities:
  - carrier: delhivery
    tier: surface
    scheme: kerberos
`), 0o600))
	_, err := config.LoadIdentities(unknown)
	assert.Error(t, err)

	missingTier := filepath.Join(dir, "tier.yaml")
	require.NoError(t, os.WriteFile(missingTier, []byte(`
identities:
  - carrier: delhivery
    scheme: static-token
`), 0o600))
	_, err = config.LoadIdentities(missingTier)
	assert.Error(t, err)

	_, err = config.LoadIdentities(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestAttributes(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ECOMEXPRESS_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range cfg.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "shipgate", attrs["service.name"])
	assert.Equal(t, "true", attrs["redis.enabled"])
	assert.Equal(t, "false", attrs["kafka.enabled"])
	assert.Equal(t, "false", attrs["ecomexpress.enabled"])
}

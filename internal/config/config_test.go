package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"VAGALI_API_URL", "VAGALI_AUTH_SCHEME", "VAGALI_TIMEOUT", "VAGALI_CREDENTIAL_STORE",
		"VAGALI_CREDENTIAL_FILE", "VAGALI_CREDENTIAL_DB", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, "Token", cfg.API.AuthScheme)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, StoreKeyring, cfg.Credentials.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VAGALI_API_URL", "https://api.vagali.test/api/v1/")
	t.Setenv("VAGALI_AUTH_SCHEME", "Bearer")
	t.Setenv("VAGALI_TIMEOUT", "5s")
	t.Setenv("VAGALI_CREDENTIAL_STORE", "SQLite")
	t.Setenv("VAGALI_CREDENTIAL_DB", "/tmp/creds.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.vagali.test/api/v1", cfg.API.URL)
	assert.Equal(t, "Bearer", cfg.API.AuthScheme)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, StoreSQLite, cfg.Credentials.Backend)
	assert.Equal(t, "/tmp/creds.db", cfg.Credentials.DB)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad timeout", env: map[string]string{"VAGALI_TIMEOUT": "soon"}},
		{name: "zero timeout", env: map[string]string{"VAGALI_TIMEOUT": "0s"}},
		{name: "bad scheme", env: map[string]string{"VAGALI_API_URL": "ftp://example.com"}},
		{name: "unknown store", env: map[string]string{"VAGALI_CREDENTIAL_STORE": "cookie-jar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("VAGALI_API_URL", "")
			t.Setenv("VAGALI_TIMEOUT", "")
			t.Setenv("VAGALI_CREDENTIAL_STORE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
		})
	}
}

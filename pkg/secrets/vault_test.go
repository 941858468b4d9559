package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soberbookings/backend/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() Option {
	return WithRetryConfig(retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func vaultConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "s.token",
		Mount:     "secret",
		Path:      "soberbookings/api",
		KVVersion: 2,
		Timeout:   time.Second,
	}
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	res, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, res.Enabled)
}

func TestApplyVaultSecrets_Incomplete(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true, Addr: "http://vault"})
	assert.Error(t, err)
}

func TestApplyVaultSecrets_ExportsManagedKeys(t *testing.T) {
	t.Setenv("PLACES_API_KEY", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("REDIS_PASSWORD", "from-env")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/soberbookings/api", r.URL.Path)
		assert.Equal(t, "s.token", r.Header.Get("X-Vault-Token"))
		w.Write([]byte(`{"data":{"data":{
			"PLACES_API_KEY":"places-key",
			"DB_PASSWORD":"pg-secret",
			"REDIS_PASSWORD":"from-vault",
			"UNRELATED":"x"
		}}}`))
	}))
	defer srv.Close()

	res, err := ApplyVaultSecrets(context.Background(), vaultConfig(srv.URL))

	require.NoError(t, err)
	sort.Strings(res.Loaded)
	assert.Equal(t, []string{"DB_PASSWORD", "PLACES_API_KEY"}, res.Loaded)
	assert.Equal(t, []string{"REDIS_PASSWORD"}, res.Skipped)
	assert.Equal(t, 1, res.Ignored)
	assert.Equal(t, "places-key", os.Getenv("PLACES_API_KEY"))
	assert.Equal(t, "from-env", os.Getenv("REDIS_PASSWORD"))
}

func TestApplyVaultSecrets_KVv1Overwrite(t *testing.T) {
	t.Setenv("TYPESENSE_API_KEY", "old")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kv/soberbookings/api", r.URL.Path)
		w.Write([]byte(`{"data":{"TYPESENSE_API_KEY":"new"}}`))
	}))
	defer srv.Close()

	cfg := vaultConfig(srv.URL)
	cfg.Mount = "kv"
	cfg.KVVersion = 1
	cfg.Overwrite = true

	res, err := ApplyVaultSecrets(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"TYPESENSE_API_KEY"}, res.Loaded)
	assert.Equal(t, "new", os.Getenv("TYPESENSE_API_KEY"))
}

func TestApplyVaultSecrets_RetriesServerErrors(t *testing.T) {
	t.Setenv("PLACES_API_KEY", "")
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"data":{"PLACES_API_KEY":"k"}}}`))
	}))
	defer srv.Close()

	_, err := ApplyVaultSecrets(context.Background(), vaultConfig(srv.URL), fastRetry())

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestApplyVaultSecrets_ForbiddenIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := ApplyVaultSecrets(context.Background(), vaultConfig(srv.URL), fastRetry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExtractVaultData_Missing(t *testing.T) {
	_, err := extractVaultData([]byte(`{"data":null}`), 2)
	assert.Error(t, err)

	_, err = extractVaultData([]byte(`{"data":{"metadata":{}}}`), 2)
	assert.Error(t, err)
}

func TestStringifyVaultValue(t *testing.T) {
	assert.Equal(t, "abc", stringifyVaultValue("abc"))
	assert.Equal(t, "", stringifyVaultValue(nil))
	assert.Equal(t, "true", stringifyVaultValue(true))
	assert.Equal(t, "5432", stringifyVaultValue(float64(5432)))
	assert.Equal(t, `["a"]`, stringifyVaultValue([]interface{}{"a"}))
}

func TestLoadVaultConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "TRUE")
	t.Setenv("VAULT_MOUNT", "")
	t.Setenv("VAULT_KV_VERSION", "1")
	t.Setenv("VAULT_TIMEOUT_MS", "250")

	cfg := LoadVaultConfigFromEnv()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "secret", cfg.Mount)
	assert.Equal(t, 1, cfg.KVVersion)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
}

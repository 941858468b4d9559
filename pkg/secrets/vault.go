package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/soberbookings/backend/pkg/retry"
)

// ManagedKeys are the environment variables a Vault secret may populate.
// Other keys stored at the same path are ignored.
var ManagedKeys = []string{
	"DB_PASSWORD",
	"REDIS_PASSWORD",
	"TYPESENSE_API_KEY",
	"PLACES_API_KEY",
}

// VaultConfig locates the KV secret holding service credentials.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
}

// VaultResult reports which managed keys were exported.
type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  []string
	Skipped []string
	Ignored int
}

// LoadVaultConfigFromEnv reads the VAULT_* variables.
func LoadVaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     os.Getenv("VAULT_MOUNT"),
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if ms, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// Option customizes ApplyVaultSecrets.
type Option func(*fetcher)

// WithHTTPClient replaces the default client built from VaultConfig.Timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *fetcher) { f.httpClient = c }
}

// WithRetryConfig overrides the retry policy for the fetch.
func WithRetryConfig(cfg retry.Config) Option {
	return func(f *fetcher) { f.retry = cfg }
}

type fetcher struct {
	httpClient *http.Client
	retry      retry.Config
}

// ApplyVaultSecrets fetches the configured secret and exports every managed
// key it contains. Keys already set in the environment are kept unless
// Overwrite is true. A disabled config is a no-op.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig, opts ...Option) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	f := &fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      retry.RequestConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}

	data, err := f.fetch(ctx, cfg)
	if err != nil {
		return result, err
	}

	managed := make(map[string]struct{}, len(ManagedKeys))
	for _, k := range ManagedKeys {
		managed[k] = struct{}{}
	}

	for key, value := range data {
		if _, ok := managed[key]; !ok {
			result.Ignored++
			continue
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		if err := os.Setenv(key, stringifyVaultValue(value)); err != nil {
			return result, fmt.Errorf("failed to export %s: %w", key, err)
		}
		result.Loaded = append(result.Loaded, key)
	}

	return result, nil
}

func (f *fetcher) fetch(ctx context.Context, cfg VaultConfig) (map[string]interface{}, error) {
	url, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry.Do(ctx, f.retry, "vault", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("X-Vault-Token", cfg.Token)
		if cfg.Namespace != "" {
			req.Header.Set("X-Vault-Namespace", cfg.Namespace)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return retry.Permanent(statusErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return extractVaultData(body, cfg.KVVersion)
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

// extractVaultData unwraps the KV payload; v2 nests the secret one level deeper.
func extractVaultData(body []byte, kvVersion int) (map[string]interface{}, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode vault response: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("vault response missing data for KV v%d", kvVersion)
	}

	if kvVersion == 1 {
		var data map[string]interface{}
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode vault data: %w", err)
		}
		return data, nil
	}

	var v2 struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(envelope.Data, &v2); err != nil {
		return nil, fmt.Errorf("failed to decode vault data: %w", err)
	}
	if v2.Data == nil {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return v2.Data, nil
}

func stringifyVaultValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

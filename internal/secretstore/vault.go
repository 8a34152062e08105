package secretstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultVaultTimeout = 5 * time.Second

// VaultConfig configures the Vault KV v2 backend.
// VAULT_ADDR, VAULT_TOKEN and VAULT_NAMESPACE override the corresponding fields.
type VaultConfig struct {
	Address       string `json:"address" yaml:"address"`
	Token         string `json:"token" yaml:"token"`
	Namespace     string `json:"namespace" yaml:"namespace"`
	TimeoutS      int    `json:"timeout_s" yaml:"timeout_s"` // Default: 5
	TLSSkipVerify bool   `json:"tls_skip_verify" yaml:"tls_skip_verify"`
}

// VaultFetcher reads KV v2 secrets over the Vault HTTP API.
// The secret id is the full KV v2 API path, e.g. "secret/data/mealplanner/db";
// an optional "vault://" prefix is accepted.
type VaultFetcher struct {
	address   string
	token     string
	namespace string
	client    *http.Client
}

// NewVaultFetcher validates cfg and builds a fetcher with its own HTTP client.
func NewVaultFetcher(cfg VaultConfig) (*VaultFetcher, error) {
	if env := os.Getenv("VAULT_ADDR"); env != "" {
		cfg.Address = env
	}
	if env := os.Getenv("VAULT_TOKEN"); env != "" {
		cfg.Token = env
	}
	if env := os.Getenv("VAULT_NAMESPACE"); env != "" {
		cfg.Namespace = env
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required (set credentials.vault.address or VAULT_ADDR)", ErrNotConfigured)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault token is required (set credentials.vault.token or VAULT_TOKEN)", ErrNotConfigured)
	}
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultVaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &VaultFetcher{
		address:   strings.TrimRight(cfg.Address, "/"),
		token:     cfg.Token,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func (f *VaultFetcher) Name() string { return BackendVault }

// FetchSecret returns the secret's data map encoded as a JSON object.
func (f *VaultFetcher) FetchSecret(ctx context.Context, secretID string) (string, error) {
	path := strings.Trim(strings.TrimPrefix(secretID, "vault://"), "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty vault path", ErrSecretNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/%s", f.address, path), nil)
	if err != nil {
		return "", fmt.Errorf("building vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", f.token)
	if f.namespace != "" {
		req.Header.Set("X-Vault-Namespace", f.namespace)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vault request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading vault response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: vault path %q", ErrSecretNotFound, path)
	case resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("vault access denied for path %q", path)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("vault returned status %d for path %q", resp.StatusCode, path)
	}

	// KV v2 envelope: {"data": {"data": {...}, "metadata": {...}}}
	var envelope struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: parsing vault response: %v", ErrMalformedResponse, err)
	}
	if envelope.Data.Data == nil {
		return "", fmt.Errorf("%w: vault path %q returned no data", ErrNoPayload, path)
	}

	payload, err := json.Marshal(envelope.Data.Data)
	if err != nil {
		return "", fmt.Errorf("encoding vault data: %w", err)
	}
	return string(payload), nil
}

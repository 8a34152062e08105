package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func kvV2Response(data map[string]any) []byte {
	resp := map[string]any{
		"data": map[string]any{
			"data":     data,
			"metadata": map[string]any{"version": 1},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

func newTestVaultServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// clearVaultEnv prevents host environment from interfering with tests.
func clearVaultEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")
	t.Setenv("VAULT_NAMESPACE", "")
}

func TestVaultFetcher_FetchSecret(t *testing.T) {
	clearVaultEnv(t)

	srv := newTestVaultServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/mealplanner/db" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Vault-Token") != "test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write(kvV2Response(map[string]any{
			"username": "admin",
			"password": "s3cret",
		}))
	})

	f, err := NewVaultFetcher(VaultConfig{Address: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewVaultFetcher: %v", err)
	}

	for _, id := range []string{"secret/data/mealplanner/db", "vault://secret/data/mealplanner/db"} {
		raw, err := f.FetchSecret(context.Background(), id)
		if err != nil {
			t.Fatalf("FetchSecret(%q): %v", id, err)
		}
		var got map[string]string
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("payload is not a JSON object: %v", err)
		}
		if got["username"] != "admin" || got["password"] != "s3cret" {
			t.Errorf("unexpected payload %v", got)
		}
	}
}

func TestVaultFetcher_Namespace(t *testing.T) {
	clearVaultEnv(t)

	var gotNS string
	srv := newTestVaultServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotNS = r.Header.Get("X-Vault-Namespace")
		w.Write(kvV2Response(map[string]any{"username": "u"}))
	})

	f, err := NewVaultFetcher(VaultConfig{Address: srv.URL, Token: "t", Namespace: "team-a"})
	if err != nil {
		t.Fatalf("NewVaultFetcher: %v", err)
	}
	if _, err := f.FetchSecret(context.Background(), "secret/data/x"); err != nil {
		t.Fatalf("FetchSecret: %v", err)
	}
	if gotNS != "team-a" {
		t.Errorf("namespace header = %q, want team-a", gotNS)
	}
}

func TestVaultFetcher_Errors(t *testing.T) {
	clearVaultEnv(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			want:    ErrSecretNotFound,
		},
		{
			name: "no data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":{"metadata":{"version":1}}}`))
			},
			want: ErrNoPayload,
		},
		{
			name: "unparseable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>gateway timeout</html>`))
			},
			want: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestVaultServer(t, tt.handler)
			f, err := NewVaultFetcher(VaultConfig{Address: srv.URL, Token: "t"})
			if err != nil {
				t.Fatalf("NewVaultFetcher: %v", err)
			}
			_, err = f.FetchSecret(context.Background(), "secret/data/x")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVaultFetcher_Forbidden(t *testing.T) {
	clearVaultEnv(t)

	srv := newTestVaultServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	f, err := NewVaultFetcher(VaultConfig{Address: srv.URL, Token: "bad"})
	if err != nil {
		t.Fatalf("NewVaultFetcher: %v", err)
	}
	_, err = f.FetchSecret(context.Background(), "secret/data/x")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrNoPayload) {
		t.Errorf("403 must not be reported as a missing secret: %v", err)
	}
}

func TestNewVaultFetcher_RequiresAddressAndToken(t *testing.T) {
	clearVaultEnv(t)

	if _, err := NewVaultFetcher(VaultConfig{Token: "t"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("without address: err = %v, want ErrNotConfigured", err)
	}
	if _, err := NewVaultFetcher(VaultConfig{Address: "http://vault:8200"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("without token: err = %v, want ErrNotConfigured", err)
	}
	if _, err := New(BackendVault, aws.Config{}, VaultConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("New(vault) without settings: err = %v, want ErrNotConfigured", err)
	}

	t.Setenv("VAULT_ADDR", "http://vault:8200")
	t.Setenv("VAULT_TOKEN", "from-env")
	if _, err := NewVaultFetcher(VaultConfig{}); err != nil {
		t.Errorf("env overrides should satisfy config: %v", err)
	}
}

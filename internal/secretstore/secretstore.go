// Package secretstore fetches structured secrets from external secret managers.
// Backends: AWS Secrets Manager and HashiCorp Vault KV v2.
// Secret material is returned to the caller and never logged here.
package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Backend names accepted by New.
const (
	BackendNone  = "none"
	BackendAWS   = "aws"
	BackendVault = "vault"
)

// Fetcher retrieves the raw string payload of a secret.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	// FetchSecret returns the payload of the secret identified by secretID.
	// Returns ErrSecretNotFound if the secret does not exist and ErrNoPayload
	// if it exists but carries no string payload.
	FetchSecret(ctx context.Context, secretID string) (string, error)

	// Name returns the backend identifier for logging.
	Name() string
}

var (
	// ErrSecretNotFound is returned when the secret does not exist in the backend.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrNoPayload is returned when the secret exists but has no string payload.
	ErrNoPayload = errors.New("secret has no payload")
	// ErrNotConfigured is returned by New when a backend lacks required settings.
	ErrNotConfigured = errors.New("secret store backend not configured")
	// ErrMalformedResponse is returned when the backend answers with a body that cannot be decoded.
	ErrMalformedResponse = errors.New("malformed secret store response")
)

// New builds the Fetcher for backend. It returns a nil Fetcher for BackendNone
// or an empty backend name. awsCfg is only used by BackendAWS. Missing backend
// settings are reported as ErrNotConfigured.
func New(backend string, awsCfg aws.Config, vault VaultConfig) (Fetcher, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendAWS:
		return NewAWSFetcher(secretsmanager.NewFromConfig(awsCfg)), nil
	case BackendVault:
		return NewVaultFetcher(vault)
	default:
		return nil, fmt.Errorf("unknown secret store backend: %q (supported: aws, vault, none)", backend)
	}
}

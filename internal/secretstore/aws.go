package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerAPI is the subset of *secretsmanager.Client used by AWSFetcher.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSFetcher reads secrets from AWS Secrets Manager.
type AWSFetcher struct {
	client SecretsManagerAPI
}

// NewAWSFetcher wraps a Secrets Manager client.
func NewAWSFetcher(client SecretsManagerAPI) *AWSFetcher {
	return &AWSFetcher{client: client}
}

func (f *AWSFetcher) Name() string { return BackendAWS }

func (f *AWSFetcher) FetchSecret(ctx context.Context, secretID string) (string, error) {
	out, err := f.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %q", ErrSecretNotFound, secretID)
		}
		return "", fmt.Errorf("getting secret %q: %w", secretID, err)
	}
	if out == nil || out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("%w: secret %q has no SecretString", ErrNoPayload, secretID)
	}
	return *out.SecretString, nil
}

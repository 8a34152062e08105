package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jkaninda/mealplanner/internal/secretstore"
)

// Secret fetch failures. They are absorbed by the secret store provider and
// only surface through Provider.Err and the resolution Report.
var (
	ErrConfigMissing    = errors.New("secret store not configured")
	ErrTransport        = errors.New("secret store request failed")
	ErrPayloadMissing   = errors.New("secret payload missing")
	ErrPayloadMalformed = errors.New("secret payload malformed")
)

// secretPayload is the expected shape of the stored secret. Other keys are ignored.
type secretPayload struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// ResolveSecretStoreProvider fetches the secret once and returns a provider
// serving its username and password from that cached copy. It never fails:
// on any error the provider is returned with nothing cached, Err reports the
// cause, and the chain falls through to next.
func ResolveSecretStoreProvider(ctx context.Context, fetcher secretstore.Fetcher, secretID string, next *Provider, logger *slog.Logger) *Provider {
	p := &Provider{
		kind:    KindSecretStore,
		lookups: map[Field]lookupFunc{},
		next:    next,
	}

	payload, err := loadSecret(ctx, fetcher, secretID)
	if err != nil {
		p.err = err
		if logger != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrConfigMissing) {
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "secret store credentials unavailable, falling back",
				slog.String("secret_id", secretID),
				slog.String("error", err.Error()),
			)
		}
		return p
	}

	if payload.Username != nil {
		p.lookups[FieldUsername] = constant(*payload.Username)
	}
	if payload.Password != nil {
		p.lookups[FieldPassword] = constant(*payload.Password)
	}
	if logger != nil {
		logger.Debug("secret store credentials loaded",
			slog.String("backend", fetcher.Name()),
			slog.Bool("username", payload.Username != nil),
			slog.Bool("password", payload.Password != nil),
		)
	}
	return p
}

func loadSecret(ctx context.Context, fetcher secretstore.Fetcher, secretID string) (secretPayload, error) {
	var payload secretPayload
	if fetcher == nil {
		return payload, fmt.Errorf("%w: no secret store backend", ErrConfigMissing)
	}
	if secretID == "" {
		return payload, fmt.Errorf("%w: no secret id", ErrConfigMissing)
	}

	raw, err := fetcher.FetchSecret(ctx, secretID)
	switch {
	case errors.Is(err, secretstore.ErrSecretNotFound), errors.Is(err, secretstore.ErrNoPayload):
		return payload, fmt.Errorf("%w: %w", ErrPayloadMissing, err)
	case errors.Is(err, secretstore.ErrMalformedResponse):
		return payload, fmt.Errorf("%w: %w", ErrPayloadMalformed, err)
	case err != nil:
		return payload, fmt.Errorf("%w: %w", ErrTransport, err)
	case raw == "":
		return payload, fmt.Errorf("%w: empty secret %q", ErrPayloadMissing, secretID)
	}

	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return secretPayload{}, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}
	return payload, nil
}

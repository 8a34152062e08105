package credentials

import (
	"context"
	"log/slog"

	"github.com/jkaninda/mealplanner/internal/secretstore"
)

// ResolverOptions configures the provider chain built by Resolve.
type ResolverOptions struct {
	Fetcher  secretstore.Fetcher // nil = secret store disabled.
	SecretID string
	EnvNames EnvironmentNames // Zero value = DB_* names.
	Defaults Defaults         // Zero value = BuiltinDefaults.
	Logger   *slog.Logger
}

// Report describes where each field came from. It never carries values.
type Report struct {
	Sources   map[Field]Kind
	SecretErr error // Failure absorbed by the secret store provider, if any.
}

func (r *Report) record(f Field, k Kind) {
	if r == nil {
		return
	}
	if r.Sources == nil {
		r.Sources = make(map[Field]Kind, len(Fields))
	}
	r.Sources[f] = k
}

// Source returns the provider that supplied f.
func (r *Report) Source(f Field) (Kind, bool) {
	if r == nil {
		return 0, false
	}
	k, ok := r.Sources[f]
	return k, ok
}

// NewChain builds the canonical chain secret store → environment → defaults.
// The secret is fetched here, once.
func NewChain(ctx context.Context, opts ResolverOptions) *Provider {
	defaults := NewDefaultsProvider(opts.Defaults)
	environment := NewEnvironmentProvider(opts.EnvNames, defaults)
	return ResolveSecretStoreProvider(ctx, opts.Fetcher, opts.SecretID, environment, opts.Logger)
}

// Resolve runs the canonical chain over an empty record.
// The result is complete unless a custom chain declined a field; callers
// must still check IsComplete or handle ConnectionString's error.
func Resolve(ctx context.Context, opts ResolverOptions) (Credentials, *Report) {
	head := NewChain(ctx, opts)
	report := &Report{SecretErr: head.Err()}
	creds := head.run(ctx, Credentials{}, report)

	if opts.Logger != nil {
		attrs := make([]any, 0, len(Fields))
		for _, f := range Fields {
			src := "unresolved"
			if k, ok := report.Source(f); ok {
				src = k.String()
			}
			attrs = append(attrs, slog.String(f.String(), src))
		}
		opts.Logger.Info("database credentials resolved", slog.Group("sources", attrs...))
	}
	return creds, report
}

package credentials

import (
	"context"
	"fmt"
)

// Kind identifies a provider variant.
type Kind int

const (
	KindSecretStore Kind = iota
	KindEnvironment
	KindDefaults
)

func (k Kind) String() string {
	switch k {
	case KindSecretStore:
		return "secret_store"
	case KindEnvironment:
		return "environment"
	case KindDefaults:
		return "defaults"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// lookupFunc supplies one field. It returns false to leave the field unresolved.
type lookupFunc func(ctx context.Context) (string, bool)

// Provider is one link of the resolution chain. Each variant registers lookups
// only for the fields it knows how to supply; any other field is left as-is.
// A provider owns the rest of the chain through next and holds no mutable state,
// so it is safe to execute concurrently and more than once.
type Provider struct {
	kind    Kind
	lookups map[Field]lookupFunc
	next    *Provider
	err     error // Construction failure absorbed by the provider (secret store only).
}

// Kind returns the provider variant.
func (p *Provider) Kind() Kind { return p.kind }

// Next returns the next provider in the chain, or nil for the terminal link.
func (p *Provider) Next() *Provider { return p.next }

// Err returns the failure absorbed while building the provider, if any.
func (p *Provider) Err() error { return p.err }

// Execute fills every unresolved field it can, then hands the record to the
// next provider. Fields that are already resolved are never overwritten.
// The input record is not modified.
func (p *Provider) Execute(ctx context.Context, creds Credentials) Credentials {
	return p.run(ctx, creds, nil)
}

func (p *Provider) run(ctx context.Context, creds Credentials, report *Report) Credentials {
	for cur := p; cur != nil; cur = cur.next {
		for _, f := range Fields {
			if _, ok := creds.Get(f); ok {
				continue
			}
			lookup, ok := cur.lookups[f]
			if !ok {
				continue
			}
			if v, ok := lookup(ctx); ok {
				creds = creds.With(f, v)
				report.record(f, cur.kind)
			}
		}
	}
	return creds
}

// constant returns a lookup that always supplies v.
func constant(v string) lookupFunc {
	return func(context.Context) (string, bool) { return v, true }
}

package credentials

import (
	"context"
	"testing"
)

// clearDBEnv prevents the host environment from leaking into chain tests.
func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"DB_NAME", "DB_HOST", "DB_PASSWORD", "DB_PORT", "DB_USERNAME"} {
		t.Setenv(name, "")
	}
}

func mustGet(t *testing.T, c Credentials, f Field) string {
	t.Helper()
	v, ok := c.Get(f)
	if !ok {
		t.Fatalf("field %s unresolved", f)
	}
	return v
}

func TestDefaultsProvider_SuppliesEverything(t *testing.T) {
	creds := NewDefaultsProvider(Defaults{}).Execute(context.Background(), Credentials{})

	b := BuiltinDefaults()
	want := map[Field]string{
		FieldDatabase: b.Database,
		FieldHost:     b.Host,
		FieldPassword: b.Password,
		FieldPort:     b.Port,
		FieldUsername: b.Username,
	}
	for f, v := range want {
		if got := mustGet(t, creds, f); got != v {
			t.Errorf("%s = %q, want %q", f, got, v)
		}
	}
	if !creds.IsComplete() {
		t.Error("defaults should produce a complete record")
	}
}

func TestDefaultsProvider_PartialOverride(t *testing.T) {
	creds := NewDefaultsProvider(Defaults{Host: "localhost"}).Execute(context.Background(), Credentials{})
	if got := mustGet(t, creds, FieldHost); got != "localhost" {
		t.Errorf("host = %q, want localhost", got)
	}
	if got := mustGet(t, creds, FieldPort); got != "5432" {
		t.Errorf("port = %q, want builtin 5432", got)
	}
}

func TestExecute_NeverOverwritesResolvedFields(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_USERNAME", "env-user")

	chain := NewEnvironmentProvider(EnvironmentNames{}, NewDefaultsProvider(Defaults{}))
	in := Credentials{}.With(FieldHost, "preset-host").With(FieldPassword, "preset-pass")

	out := chain.Execute(context.Background(), in)

	if got := mustGet(t, out, FieldHost); got != "preset-host" {
		t.Errorf("host overwritten: got %q", got)
	}
	if got := mustGet(t, out, FieldPassword); got != "preset-pass" {
		t.Errorf("password overwritten: got %q", got)
	}
	if got := mustGet(t, out, FieldUsername); got != "env-user" {
		t.Errorf("username = %q, want env-user", got)
	}
	// Input must be untouched.
	if _, ok := in.Get(FieldUsername); ok {
		t.Error("Execute mutated its input")
	}
}

func TestEnvironmentProvider_FallsThroughPerField(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_NAME", "recipes")
	t.Setenv("DB_PORT", "6543")

	out := NewEnvironmentProvider(EnvironmentNames{}, NewDefaultsProvider(Defaults{})).
		Execute(context.Background(), Credentials{})

	b := BuiltinDefaults()
	cases := map[Field]string{
		FieldDatabase: "recipes",
		FieldPort:     "6543",
		FieldHost:     b.Host,
		FieldPassword: b.Password,
		FieldUsername: b.Username,
	}
	for f, want := range cases {
		if got := mustGet(t, out, f); got != want {
			t.Errorf("%s = %q, want %q", f, got, want)
		}
	}
}

func TestEnvironmentProvider_CustomNames(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("PGHOST", "pg.internal")

	out := NewEnvironmentProvider(EnvironmentNames{Host: "PGHOST"}, nil).
		Execute(context.Background(), Credentials{})

	if got := mustGet(t, out, FieldHost); got != "pg.internal" {
		t.Errorf("host = %q, want pg.internal", got)
	}
	if _, ok := out.Get(FieldDatabase); ok {
		t.Error("database should stay unresolved without a defaults link")
	}
}

func TestProvider_Reusable(t *testing.T) {
	clearDBEnv(t)
	chain := NewEnvironmentProvider(EnvironmentNames{}, NewDefaultsProvider(Defaults{}))

	first := chain.Execute(context.Background(), Credentials{})
	t.Setenv("DB_HOST", "second-run")
	second := chain.Execute(context.Background(), Credentials{})

	if got := mustGet(t, first, FieldHost); got != BuiltinDefaults().Host {
		t.Errorf("first run host = %q", got)
	}
	if got := mustGet(t, second, FieldHost); got != "second-run" {
		t.Errorf("second run host = %q, want second-run", got)
	}
}

func TestChain_Terminates(t *testing.T) {
	head := NewChain(context.Background(), ResolverOptions{})

	kinds := []Kind{}
	for p := head; p != nil; p = p.Next() {
		kinds = append(kinds, p.Kind())
		if len(kinds) > 3 {
			t.Fatal("chain longer than three links")
		}
	}
	want := []Kind{KindSecretStore, KindEnvironment, KindDefaults}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("link %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

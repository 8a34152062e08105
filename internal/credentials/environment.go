package credentials

import (
	"context"
	"os"
)

// EnvironmentNames maps each field to the environment variable it is read from.
type EnvironmentNames struct {
	Database string
	Host     string
	Password string
	Port     string
	Username string
}

// DefaultEnvironmentNames returns the standard DB_* variable names.
func DefaultEnvironmentNames() EnvironmentNames {
	return EnvironmentNames{
		Database: "DB_NAME",
		Host:     "DB_HOST",
		Password: "DB_PASSWORD",
		Port:     "DB_PORT",
		Username: "DB_USERNAME",
	}
}

func (n EnvironmentNames) withDefaults() EnvironmentNames {
	d := DefaultEnvironmentNames()
	if n.Database == "" {
		n.Database = d.Database
	}
	if n.Host == "" {
		n.Host = d.Host
	}
	if n.Password == "" {
		n.Password = d.Password
	}
	if n.Port == "" {
		n.Port = d.Port
	}
	if n.Username == "" {
		n.Username = d.Username
	}
	return n
}

// NewEnvironmentProvider creates a provider reading each field from its
// environment variable. A variable that is unset or empty supplies nothing.
func NewEnvironmentProvider(names EnvironmentNames, next *Provider) *Provider {
	names = names.withDefaults()
	return &Provider{
		kind: KindEnvironment,
		lookups: map[Field]lookupFunc{
			FieldDatabase: fromEnv(names.Database),
			FieldHost:     fromEnv(names.Host),
			FieldPassword: fromEnv(names.Password),
			FieldPort:     fromEnv(names.Port),
			FieldUsername: fromEnv(names.Username),
		},
		next: next,
	}
}

func fromEnv(name string) lookupFunc {
	return func(context.Context) (string, bool) {
		v := os.Getenv(name)
		return v, v != ""
	}
}

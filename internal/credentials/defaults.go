package credentials

// Defaults holds the fallback value for every field.
type Defaults struct {
	Database string `json:"database" yaml:"database"`
	Host     string `json:"host" yaml:"host"`
	Password string `json:"password" yaml:"password"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
}

// BuiltinDefaults returns the values used for local development (docker compose "db" service).
func BuiltinDefaults() Defaults {
	return Defaults{
		Database: "meal-planner",
		Host:     "db",
		Password: "password1234",
		Port:     "5432",
		Username: "postgres",
	}
}

// withBuiltins fills empty values from BuiltinDefaults.
func (d Defaults) withBuiltins() Defaults {
	b := BuiltinDefaults()
	if d.Database == "" {
		d.Database = b.Database
	}
	if d.Host == "" {
		d.Host = b.Host
	}
	if d.Password == "" {
		d.Password = b.Password
	}
	if d.Port == "" {
		d.Port = b.Port
	}
	if d.Username == "" {
		d.Username = b.Username
	}
	return d
}

// NewDefaultsProvider creates the terminal provider. It supplies every field,
// taking any value left empty in d from BuiltinDefaults.
func NewDefaultsProvider(d Defaults) *Provider {
	d = d.withBuiltins()
	return &Provider{
		kind: KindDefaults,
		lookups: map[Field]lookupFunc{
			FieldDatabase: constant(d.Database),
			FieldHost:     constant(d.Host),
			FieldPassword: constant(d.Password),
			FieldPort:     constant(d.Port),
			FieldUsername: constant(d.Username),
		},
	}
}

package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/comprasetl/internal/config"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

const (
	defaultHost     = "localhost"
	defaultPort     = 5432
	defaultDatabase = "postgres"
	defaultSSLMode  = "prefer"
	defaultAppName  = "comprasetl"
)

// ConnFlags holds connection parameters given on the command line.
// Passwords are never accepted as flags; use DB_PASSWORD, PGPASSWORD,
// the .env file, or a connection string.
type ConnFlags struct {
	ConnString string
	Host       string
	Port       int
	Username   string
	Database   string
	SSLMode    string

	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// hasGranular reports whether any of -h, -p, -U or --sslmode was given.
// -d may be combined with a connection string to override its database.
func (f *ConnFlags) hasGranular() bool {
	return f.Host != "" || f.Port != 0 || f.Username != "" || f.SSLMode != ""
}

// EnvVars is a snapshot of the environment variables that affect the
// connection. The DB_* names come from the project's .env file; the PG*
// names are the libpq standard.
type EnvVars struct {
	DBHost, DBPort, DBName, DBUser, DBPassword string

	PGHost, PGPort, PGDatabase, PGUser, PGPassword, PGSSLMode string

	DatabaseURL string

	AuthMethod        string
	AWSRegion         string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		PGHost:            os.Getenv("PGHOST"),
		PGPort:            os.Getenv("PGPORT"),
		PGDatabase:        os.Getenv("PGDATABASE"),
		PGUser:            os.Getenv("PGUSER"),
		PGPassword:        os.Getenv("PGPASSWORD"),
		PGSSLMode:         os.Getenv("PGSSLMODE"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AuthMethod:        os.Getenv("COMPRAS_AUTH_METHOD"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		AzureTenantID:     os.Getenv("AZURE_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams merges every connection source into one config.
//
// With --connection, the string is authoritative and only -d may override
// its database; combining it with -h/-p/-U/--sslmode is an error. Otherwise
// each field is taken from the first source that sets it:
//
//  1. flags (-h, -p, -U, -d, --sslmode)
//  2. DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD
//  3. PGHOST, PGPORT, PGDATABASE, PGUSER, PGPASSWORD, PGSSLMODE
//  4. DATABASE_URL
//  5. comprasetl.yaml
//  6. defaults (localhost:5432/postgres, sslmode=prefer)
func ResolveConnectionParams(
	flags *ConnFlags,
	env *EnvVars,
	project *config.ProjectConfig,
) (*comprasetl.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if project != nil {
		pc = project.Connection
	}

	if flags.ConnString != "" && flags.hasGranular() {
		return nil, fmt.Errorf("cannot combine --connection with -h, -p, -U or --sslmode: %w", comprasetl.ErrInvalidConfig)
	}

	var cfg *comprasetl.ConnectionConfig
	var err error
	if flags.ConnString != "" {
		cfg, err = ParseConnectionString(flags.ConnString)
		if err != nil {
			return nil, fmt.Errorf("invalid --connection: %w: %w", comprasetl.ErrInvalidConfig, err)
		}
		cfg.Database = first(flags.Database, cfg.Database)
	} else {
		cfg, err = resolveGranular(flags, env, pc)
		if err != nil {
			return nil, err
		}
	}

	cfg.Host = first(cfg.Host, defaultHost)
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	cfg.Database = first(cfg.Database, defaultDatabase)
	cfg.SSLMode = first(cfg.SSLMode, env.PGSSLMode, pc.SSLMode, defaultSSLMode)
	cfg.AppName = first(cfg.AppName, defaultAppName)
	if cfg.Username == "" {
		cfg.Username = first(os.Getenv("USER"), os.Getenv("USERNAME"))
	}
	if cfg.AdditionalParams == nil {
		cfg.AdditionalParams = make(map[string]string)
	}

	if err := applyCloudAuth(cfg, flags, env, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveGranular(flags *ConnFlags, env *EnvVars, pc config.ConnectionConfig) (*comprasetl.ConnectionConfig, error) {
	urlCfg := &comprasetl.ConnectionConfig{}
	if env.DatabaseURL != "" {
		parsed, err := ParseConnectionString(env.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid $DATABASE_URL: %w: %w", comprasetl.ErrInvalidConfig, err)
		}
		urlCfg = parsed
	}

	cfg := &comprasetl.ConnectionConfig{
		Host:             first(flags.Host, env.DBHost, env.PGHost, urlCfg.Host, pc.Host),
		Username:         first(flags.Username, env.DBUser, env.PGUser, urlCfg.Username, pc.Username),
		Password:         first(env.DBPassword, env.PGPassword, urlCfg.Password),
		Database:         first(flags.Database, env.DBName, env.PGDatabase, urlCfg.Database, pc.Database),
		SSLMode:          first(flags.SSLMode, env.PGSSLMode, urlCfg.SSLMode, pc.SSLMode),
		AppName:          urlCfg.AppName,
		ConnectTimeout:   urlCfg.ConnectTimeout,
		AdditionalParams: urlCfg.AdditionalParams,
	}

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.DBPort != "":
		port, err := parsePort("$DB_PORT", env.DBPort)
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	case env.PGPort != "":
		port, err := parsePort("$PGPORT", env.PGPort)
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	case urlCfg.Port != 0:
		cfg.Port = urlCfg.Port
	default:
		cfg.Port = pc.Port
	}
	return cfg, nil
}

func applyCloudAuth(cfg *comprasetl.ConnectionConfig, flags *ConnFlags, env *EnvVars, pc config.ConnectionConfig) error {
	method, err := comprasetl.ParseAuthMethod(first(flags.AuthMethod, env.AuthMethod, pc.AuthMethod))
	if err != nil {
		return err
	}
	cfg.AuthMethod = method

	switch method {
	case comprasetl.AuthMethodAWSIAM:
		cfg.AWSRegion = first(flags.AWSRegion, env.AWSRegion, pc.AWSRegion)
	case comprasetl.AuthMethodGoogleIAM:
		cfg.GoogleInstance = first(flags.GoogleInstance, pc.GoogleInstance)
	case comprasetl.AuthMethodAzureEntraID:
		cfg.AzureTenantID = first(flags.AzureTenantID, env.AzureTenantID, pc.AzureTenantID)
		cfg.AzureClientID = first(flags.AzureClientID, env.AzureClientID, pc.AzureClientID)
		cfg.AzureClientSecret = env.AzureClientSecret
	}
	return nil
}

func parsePort(name, value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s value %q: must be a port number: %w", name, value, comprasetl.ErrInvalidConfig)
	}
	return port, nil
}

// first returns the first non-empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

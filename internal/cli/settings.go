package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/config"
	"github.com/vvka-141/comprasetl/internal/db"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Environment variables recognised alongside the connection variables.
const (
	envConnection       = "COMPRAS_CONNECTION"
	envTable            = "COMPRAS_TABLE"
	envTimestampColumn  = "COMPRAS_TIMESTAMP_COLUMN"
	envBatchSize        = "COMPRAS_BATCH_SIZE"
	envConflictPolicy   = "COMPRAS_CONFLICT_POLICY"
	envSchema           = "COMPRAS_SCHEMA"
	envTimeout          = "COMPRAS_TIMEOUT"
	envStatementTimeout = "COMPRAS_STATEMENT_TIMEOUT"
	envRawDir           = "COMPRAS_RAW_DIR"
	envProcessedDir     = "COMPRAS_PROCESSED_DIR"
)

// setting resolves one value with precedence flag > env > yaml > default.
// The flag only wins when the user set it explicitly.
type setting struct {
	cmd  *cobra.Command
	flag string
	env  string
}

func (s setting) stringValue(flagVal, yamlVal, def string) string {
	if s.cmd != nil && s.cmd.Flags().Changed(s.flag) {
		return flagVal
	}
	if v := os.Getenv(s.env); v != "" {
		return v
	}
	if yamlVal != "" {
		return yamlVal
	}
	return def
}

func (s setting) intValue(flagVal, yamlVal, def int) (int, error) {
	if s.cmd != nil && s.cmd.Flags().Changed(s.flag) {
		return flagVal, nil
	}
	if v := os.Getenv(s.env); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s=%q: %w", s.env, v, comprasetl.ErrInvalidConfig)
		}
		return n, nil
	}
	if yamlVal != 0 {
		return yamlVal, nil
	}
	return def, nil
}

func (s setting) durationValue(flagVal, yamlVal, def time.Duration) (time.Duration, error) {
	if s.cmd != nil && s.cmd.Flags().Changed(s.flag) {
		return flagVal, nil
	}
	if v := os.Getenv(s.env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s=%q: %w", s.env, v, comprasetl.ErrInvalidConfig)
		}
		return d, nil
	}
	if yamlVal > 0 {
		return yamlVal, nil
	}
	return def, nil
}

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	awsRegion      string
	googleInstance string
	azureTenantID  string
	azureClientID  string
}

func registerConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().StringVar(&f.connection, "connection", "",
		"PostgreSQL connection string (URI or key=value format).\n"+
			"Mutually exclusive with --host, --port, --username and --sslmode.\n"+
			"Alternative: "+envConnection+" or DATABASE_URL environment variable.")
	cmd.Flags().StringVarP(&f.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $DB_HOST > $PGHOST > comprasetl.yaml > localhost")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $DB_PORT > $PGPORT > comprasetl.yaml > 5432")
	cmd.Flags().StringVarP(&f.username, "username", "U", "",
		"PostgreSQL user (default: $DB_USER, $PGUSER or current OS user)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "",
		"Target database (default: $DB_NAME, $PGDATABASE or postgres)\n"+
			"Overrides the database of --connection")
	cmd.Flags().StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")
	cmd.Flags().StringVar(&f.authMethod, "auth-method", "",
		"Authentication: standard|aws-iam|google|azure (default: standard, or $COMPRAS_AUTH_METHOD)")
	cmd.Flags().StringVar(&f.awsRegion, "aws-region", "",
		"AWS region for IAM authentication (overrides $AWS_REGION)")
	cmd.Flags().StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")
	cmd.Flags().StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	cmd.Flags().StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")
}

// resolveConnection combines flags, environment and comprasetl.yaml into the
// target connection. COMPRAS_CONNECTION stands in for --connection when no
// granular flag was given.
func resolveConnection(f connectionFlags, projectCfg *config.ProjectConfig) (*comprasetl.ConnectionConfig, error) {
	connFlags := &db.ConnFlags{
		ConnString:     f.connection,
		Host:           f.host,
		Port:           f.port,
		Username:       f.username,
		Database:       f.database,
		SSLMode:        f.sslMode,
		AuthMethod:     f.authMethod,
		AWSRegion:      f.awsRegion,
		GoogleInstance: f.googleInstance,
		AzureTenantID:  f.azureTenantID,
		AzureClientID:  f.azureClientID,
	}
	if connFlags.ConnString == "" && f.host == "" && f.port == 0 && f.username == "" && f.sslMode == "" {
		connFlags.ConnString = os.Getenv(envConnection)
	}

	return db.ResolveConnectionParams(connFlags, db.LoadFromEnvironment(), projectCfg)
}

// resolvePaths returns the raw and processed directories.
func resolvePaths(cmd *cobra.Command, rawFlag, processedFlag string, projectCfg *config.ProjectConfig) (string, string) {
	var pc config.PathsConfig
	if projectCfg != nil {
		pc = projectCfg.Paths
	}
	raw := setting{cmd, "raw-dir", envRawDir}.stringValue(rawFlag, pc.RawDir, comprasetl.DefaultRawDir)
	processed := setting{cmd, "processed-dir", envProcessedDir}.stringValue(processedFlag, pc.ProcessedDir, comprasetl.DefaultProcessedDir)
	return raw, processed
}

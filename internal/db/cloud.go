package db

import (
	"context"
	"fmt"
	"net"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// tokenExpiryWarning is the remaining token lifetime below which a warning
// is logged. A load that outlives its token keeps its open connection.
const tokenExpiryWarning = 5 * time.Minute

// TokenProvider yields a short-lived token used as the PostgreSQL password.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider without secrets.
	String() string
}

// AWSIAMTokenProvider builds RDS IAM auth tokens from the default AWS
// credential chain.
type AWSIAMTokenProvider struct {
	endpoint string
	region   string
	username string
}

// NewAWSIAMTokenProvider validates its inputs; endpoint is host:port.
func NewAWSIAMTokenProvider(endpoint, region, username string) (*AWSIAMTokenProvider, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("AWS IAM auth requires endpoint (host:port)")
	case region == "":
		return nil, fmt.Errorf("AWS IAM auth requires region (use --aws-region or $AWS_REGION)")
	case username == "":
		return nil, fmt.Errorf("AWS IAM auth requires database username")
	}
	return &AWSIAMTokenProvider{endpoint: endpoint, region: region, username: username}, nil
}

// GetToken returns an RDS auth token, valid for 15 minutes.
func (p *AWSIAMTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, cfg.Credentials)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	return token, time.Now().Add(15 * time.Minute), nil
}

func (p *AWSIAMTokenProvider) String() string {
	return fmt.Sprintf("AWS IAM (endpoint=%s, region=%s, user=%s)", p.endpoint, p.region, p.username)
}

// AzureTokenProvider acquires Entra ID tokens for Azure Database for
// PostgreSQL, either from a service principal or from the default
// credential chain.
type AzureTokenProvider struct {
	credential azcore.TokenCredential
	desc       string
}

// NewAzureTokenProvider uses service principal credentials when all three
// values are set, and DefaultAzureCredential when none are. A partial set
// is an error.
func NewAzureTokenProvider(tenantID, clientID, clientSecret string) (*AzureTokenProvider, error) {
	set := 0
	for _, v := range []string{tenantID, clientID, clientSecret} {
		if v != "" {
			set++
		}
	}

	switch set {
	case 0:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure default credential: %w", err)
		}
		return &AzureTokenProvider{credential: cred, desc: "Azure default credential"}, nil
	case 3:
		cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		return &AzureTokenProvider{
			credential: cred,
			desc:       fmt.Sprintf("Azure service principal (tenant=%s, client=%s)", tenantID, clientID),
		}, nil
	default:
		return nil, fmt.Errorf("azure service principal requires tenant ID, client ID and AZURE_CLIENT_SECRET together")
	}
}

func (p *AzureTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	token, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{AzurePostgreSQLScope},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("azure token acquisition failed: %w", err)
	}
	return token.Token, token.ExpiresOn, nil
}

func (p *AzureTokenProvider) String() string {
	return p.desc
}

// TokenConnector connects with a token from a TokenProvider as password.
type TokenConnector struct {
	config   *comprasetl.ConnectionConfig
	provider TokenProvider
	logger   comprasetl.Logger
}

// NewTokenConnector creates a connector for AWS IAM or Azure Entra ID.
func NewTokenConnector(config *comprasetl.ConnectionConfig, provider TokenProvider, logger comprasetl.Logger) *TokenConnector {
	return &TokenConnector{config: config, provider: provider, logger: logger}
}

func (c *TokenConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	token, expiresOn, err := c.provider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire token from %s: %w", comprasetl.ErrConnectionFailed, c.provider, err)
	}
	if left := time.Until(expiresOn); left < tokenExpiryWarning {
		c.logger.Warn("%s token expires in %v", c.provider, left.Round(time.Second))
	}
	c.logger.Verbose("Authenticating with %s", c.provider)

	withToken := *c.config
	withToken.Password = token
	return openPool(ctx, c.config, BuildConnectionString(&withToken), c.logger, nil)
}

// GoogleCloudSQLConnector connects through the Cloud SQL Go Connector with
// IAM database authentication. Close must be called after the pool is closed.
type GoogleCloudSQLConnector struct {
	config *comprasetl.ConnectionConfig
	logger comprasetl.Logger
	dialer *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector uses config.GoogleInstance (project:region:instance).
func NewGoogleCloudSQLConnector(config *comprasetl.ConnectionConfig, logger comprasetl.Logger) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{config: config, logger: logger}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", comprasetl.ErrConnectionFailed, err)
	}

	instance := c.config.GoogleInstance
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", instance, c.config.Username, c.config.Database)
	pool, err := openPool(ctx, c.config, dsn, c.logger, func(pc *pgxpool.Config) {
		pc.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.Dial(ctx, instance)
		}
	})
	if err != nil {
		dialer.Close()
		return nil, err
	}

	c.dialer = dialer
	return pool, nil
}

// Close releases the Cloud SQL dialer.
func (c *GoogleCloudSQLConnector) Close() error {
	if c.dialer != nil {
		err := c.dialer.Close()
		c.dialer = nil
		return err
	}
	return nil
}

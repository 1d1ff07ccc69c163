package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgconn/ctxwatch"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Pool configuration. A load run holds exactly one connection for its whole
// duration, so the pool never needs more than that.
const (
	DefaultMaxConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute

	// CancelDeadlineDelay is how long a canceled statement may take to stop
	// after the cancel request before the connection itself is dropped.
	CancelDeadlineDelay = 5 * time.Second
)

func configurePool(poolConfig *pgxpool.Config, logger comprasetl.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
	// A statement timeout cancels the statement on the server and keeps the
	// connection, so the file's transaction can be rolled back and the next
	// file still has a session to work with.
	poolConfig.ConnConfig.BuildContextWatcherHandler = func(conn *pgconn.PgConn) ctxwatch.Handler {
		return &pgconn.CancelRequestContextWatcherHandler{
			Conn:          conn,
			DeadlineDelay: CancelDeadlineDelay,
		}
	}
}

// openPool parses connStr, opens the pool and pings it once. There is no
// retry: a failed connection is reported to the caller as is.
func openPool(ctx context.Context, cfg *comprasetl.ConnectionConfig, connStr string, logger comprasetl.Logger, tune func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", comprasetl.ErrInvalidConfig, err)
	}

	configurePool(poolConfig, logger)
	if tune != nil {
		tune(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector connects with username and password.
type StandardConnector struct {
	config *comprasetl.ConnectionConfig
	logger comprasetl.Logger
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *comprasetl.ConnectionConfig, logger comprasetl.Logger) *StandardConnector {
	return &StandardConnector{config: config, logger: logger}
}

// Connect opens and verifies a connection pool.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return openPool(ctx, c.config, BuildConnectionString(c.config), c.logger, nil)
}

// NewConnector returns the Connector matching config.AuthMethod.
func NewConnector(config *comprasetl.ConnectionConfig, logger comprasetl.Logger) (comprasetl.Connector, error) {
	switch config.AuthMethod {
	case comprasetl.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case comprasetl.AuthMethodAWSIAM:
		provider, err := NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", config.Host, config.Port), config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", comprasetl.ErrInvalidConfig, err)
		}
		return NewTokenConnector(config, provider, logger), nil
	case comprasetl.AuthMethodGoogleIAM:
		if config.GoogleInstance == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", comprasetl.ErrInvalidConfig)
		}
		if config.Username == "" {
			return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", comprasetl.ErrInvalidConfig)
		}
		return NewGoogleCloudSQLConnector(config, logger), nil
	case comprasetl.AuthMethodAzureEntraID:
		provider, err := NewAzureTokenProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", comprasetl.ErrInvalidConfig, err)
		}
		return NewTokenConnector(config, provider, logger), nil
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, comprasetl.ErrInvalidConfig)
	}
}

// wrapConnectionError wraps raw pgx connection errors with actionable
// guidance. The result always matches comprasetl.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`%w: connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong DB_HOST or DB_PORT

Original error: %w`, comprasetl.ErrConnectionFailed, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`%w: cannot resolve host "%s"

Check DB_HOST (or PGHOST, DATABASE_URL) for typos.

Original error: %w`, comprasetl.ErrConnectionFailed, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`%w: password authentication failed for database "%s"

Check DB_USER and DB_PASSWORD in your environment or .env file.

Original error: %w`, comprasetl.ErrConnectionFailed, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`%w: database "%s" does not exist

To create it:
  createdb %s

Original error: %w`, comprasetl.ErrConnectionFailed, database, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`%w: connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host or port

Original error: %w`, comprasetl.ErrConnectionFailed, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`%w: SSL/TLS connection error

Try a different --sslmode (disable, prefer, require).

Original error: %w`, comprasetl.ErrConnectionFailed, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`%w: too many connections to database "%s"

Original error: %w`, comprasetl.ErrConnectionFailed, database, err)

	default:
		return fmt.Errorf("%w: failed to connect to database: %w", comprasetl.ErrConnectionFailed, err)
	}
}

package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name         string
		errMsg       string
		host         string
		wantContains string
	}{
		{"connection refused", "dial tcp 127.0.0.1:5432: connection refused", "127.0.0.1", "connection refused to 127.0.0.1:5432"},
		{"actively refused", "connectex: No connection could be made because the target machine actively refused it", "127.0.0.1", "connection refused to 127.0.0.1:5432"},
		{"no such host", "dial tcp: lookup db.invalid: no such host", "db.invalid", `cannot resolve host "db.invalid"`},
		{"password", `password authentication failed for user "etl"`, "localhost", `password authentication failed for database "compras"`},
		{"missing database", `database "compras" does not exist`, "localhost", "createdb compras"},
		{"timeout", "dial tcp 10.0.0.1:5432: i/o timeout", "10.0.0.1", "connection timed out to 10.0.0.1:5432"},
		{"tls", "tls: handshake failure", "localhost", "SSL/TLS connection error"},
		{"too many connections", "FATAL: too many connections for role", "localhost", `too many connections to database "compras"`},
		{"fallback", "something unexpected", "localhost", "failed to connect to database"},
		{"case insensitive", "CONNECTION REFUSED by firewall", "fw.local", "connection refused to fw.local:5432"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := errors.New(tt.errMsg)
			wrapped := wrapConnectionError(original, tt.host, 5432, "compras")

			assert.Contains(t, wrapped.Error(), tt.wantContains)
			assert.ErrorIs(t, wrapped, original)
			assert.ErrorIs(t, wrapped, comprasetl.ErrConnectionFailed)
			assert.Equal(t, comprasetl.ExitConnectionError, comprasetl.ExitCodeForError(wrapped))
		})
	}
}

func TestNewConnector(t *testing.T) {
	logger := nopLogger{}

	t.Run("standard", func(t *testing.T) {
		c, err := NewConnector(&comprasetl.ConnectionConfig{Host: "localhost", Port: 5432}, logger)
		assert.NoError(t, err)
		assert.IsType(t, &StandardConnector{}, c)
	})

	t.Run("aws requires region", func(t *testing.T) {
		_, err := NewConnector(&comprasetl.ConnectionConfig{
			Host: "db.rds.amazonaws.com", Port: 5432, Username: "etl", AuthMethod: comprasetl.AuthMethodAWSIAM,
		}, logger)
		assert.ErrorIs(t, err, comprasetl.ErrInvalidConfig)
	})

	t.Run("aws", func(t *testing.T) {
		c, err := NewConnector(&comprasetl.ConnectionConfig{
			Host: "db.rds.amazonaws.com", Port: 5432, Username: "etl",
			AuthMethod: comprasetl.AuthMethodAWSIAM, AWSRegion: "sa-east-1",
		}, logger)
		assert.NoError(t, err)
		assert.IsType(t, &TokenConnector{}, c)
	})

	t.Run("google requires instance", func(t *testing.T) {
		_, err := NewConnector(&comprasetl.ConnectionConfig{Username: "etl", AuthMethod: comprasetl.AuthMethodGoogleIAM}, logger)
		assert.ErrorIs(t, err, comprasetl.ErrInvalidConfig)
	})

	t.Run("google", func(t *testing.T) {
		c, err := NewConnector(&comprasetl.ConnectionConfig{
			Username: "etl", AuthMethod: comprasetl.AuthMethodGoogleIAM, GoogleInstance: "p:r:i",
		}, logger)
		assert.NoError(t, err)
		assert.IsType(t, &GoogleCloudSQLConnector{}, c)
	})

	t.Run("azure partial service principal", func(t *testing.T) {
		_, err := NewConnector(&comprasetl.ConnectionConfig{
			AuthMethod: comprasetl.AuthMethodAzureEntraID, AzureTenantID: "t",
		}, logger)
		assert.ErrorIs(t, err, comprasetl.ErrInvalidConfig)
	})

	t.Run("azure service principal", func(t *testing.T) {
		c, err := NewConnector(&comprasetl.ConnectionConfig{
			AuthMethod:        comprasetl.AuthMethodAzureEntraID,
			AzureTenantID:     "00000000-0000-0000-0000-000000000001",
			AzureClientID:     "00000000-0000-0000-0000-000000000002",
			AzureClientSecret: "secret",
		}, logger)
		assert.NoError(t, err)
		assert.IsType(t, &TokenConnector{}, c)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewConnector(&comprasetl.ConnectionConfig{AuthMethod: comprasetl.AuthMethod(99)}, logger)
		assert.ErrorIs(t, err, comprasetl.ErrInvalidConfig)
	})
}

func TestNewAWSIAMTokenProvider_RequiresAllParams(t *testing.T) {
	_, err := NewAWSIAMTokenProvider("", "r", "u")
	assert.Error(t, err)
	_, err = NewAWSIAMTokenProvider("h:5432", "", "u")
	assert.Error(t, err)
	_, err = NewAWSIAMTokenProvider("h:5432", "r", "")
	assert.Error(t, err)

	p, err := NewAWSIAMTokenProvider("h:5432", "r", "u")
	assert.NoError(t, err)
	assert.NotContains(t, p.String(), "secret")
}

type nopLogger struct{}

func (nopLogger) Verbose(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warn(string, ...interface{})    {}
func (nopLogger) Error(string, ...interface{})   {}

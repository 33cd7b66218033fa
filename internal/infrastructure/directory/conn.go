package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"dirport/internal/domain"
)

// Conn is the subset of ldap.Client this package needs. Kept small so tests
// can fake the directory without a server.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Dialer opens a directory connection to the given LDAP URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a func to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// defaultDialer dials with an optional TLS config and a connect timeout.
type defaultDialer struct {
	tlsConfig *tls.Config
	timeout   time.Duration
}

func (d *defaultDialer) Dial(_ context.Context, url string) (Conn, error) {
	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: d.timeout}),
	}
	if d.tlsConfig != nil {
		opts = append(opts, ldap.DialWithTLSConfig(d.tlsConfig))
	}
	conn, err := ldap.DialURL(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}
	return conn, nil
}

// Connector hands out bound directory connections. One connection per
// operation; nothing is pooled, matching the sequential query model.
type Connector struct {
	url          string
	bindDN       string
	bindPassword string
	dialer       Dialer
}

// ConnectorConfig configures the directory connector.
type ConnectorConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	TLSConfig    *tls.Config
	DialTimeout  time.Duration

	// Dialer overrides the default dialer, for tests.
	Dialer Dialer
}

// NewConnector creates a connector for the configured directory.
func NewConnector(cfg ConnectorConfig) *Connector {
	dialer := cfg.Dialer
	if dialer == nil {
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		dialer = &defaultDialer{tlsConfig: cfg.TLSConfig, timeout: timeout}
	}
	return &Connector{
		url:          cfg.URL,
		bindDN:       cfg.BindDN,
		bindPassword: cfg.BindPassword,
		dialer:       dialer,
	}
}

// ServiceConn dials and binds as the configured service account.
func (c *Connector) ServiceConn(ctx context.Context) (Conn, error) {
	return c.bindConn(ctx, c.bindDN, c.bindPassword)
}

// UserConn dials and binds with end-user credentials. A bind failure is
// returned as-is so the caller can interpret the server's subcode.
func (c *Connector) UserConn(ctx context.Context, username, password string) (Conn, error) {
	return c.bindConn(ctx, username, password)
}

// Dialer exposes the connector's dialer for referral chasing.
func (c *Connector) Dialer() Dialer { return c.dialer }

func (c *Connector) bindConn(ctx context.Context, username, password string) (Conn, error) {
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		return nil, err
	}
	if err := conn.Bind(username, password); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

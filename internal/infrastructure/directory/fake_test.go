package directory

import (
	"context"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn fakes the directory for tests; unset funcs succeed with empty
// results.
type fakeConn struct {
	bindFunc           func(username, password string) error
	searchFunc         func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	modifyFunc         func(req *ldap.ModifyRequest) error
	passwordModifyFunc func(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
	closed             bool
}

func (c *fakeConn) Bind(username, password string) error {
	if c.bindFunc == nil {
		return nil
	}
	return c.bindFunc(username, password)
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.searchFunc == nil {
		return &ldap.SearchResult{}, nil
	}
	return c.searchFunc(req)
}

func (c *fakeConn) Modify(req *ldap.ModifyRequest) error {
	if c.modifyFunc == nil {
		return nil
	}
	return c.modifyFunc(req)
}

func (c *fakeConn) PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
	if c.passwordModifyFunc == nil {
		return &ldap.PasswordModifyResult{}, nil
	}
	return c.passwordModifyFunc(req)
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// fakeDialer hands the same conn to every dial, recording dialed URLs.
type fakeDialer struct {
	conn   *fakeConn
	err    error
	dialed []string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.dialed = append(d.dialed, url)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// userEntry builds a directory entry for a user object.
func userEntry(dn string, attrs map[string][]string) *ldap.Entry {
	return ldap.NewEntry(dn, attrs)
}

// emptyResult satisfies configuration and trust queries that tests do not
// care about.
func emptyResult() *ldap.SearchResult {
	return &ldap.SearchResult{}
}

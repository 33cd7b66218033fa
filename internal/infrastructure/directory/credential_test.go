package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirport/internal/domain"
)

var testDefaultDomain = domain.ParseIdentity("DC=corp,DC=example,DC=com")

const testUserDN = "CN=John Doe,OU=Staff,DC=corp,DC=example,DC=com"

// userSearchResult answers user lookups with the given entry and leaves
// forest discovery queries empty.
func userSearchResult(entry *ldap.Entry) func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
		if strings.Contains(req.Filter, "objectClass=user") && entry != nil {
			return &ldap.SearchResult{Entries: []*ldap.Entry{entry}}, nil
		}
		return emptyResult(), nil
	}
}

func newTestValidator(conn *fakeConn, cfg ValidatorConfig) *Validator {
	connector := NewConnector(ConnectorConfig{
		URL:          "ldaps://dc01.corp.example.com:636",
		BindDN:       "CN=svc-portal,OU=Service,DC=corp,DC=example,DC=com",
		BindPassword: "service-secret",
		Dialer:       &fakeDialer{conn: conn},
	})
	forest := NewForestResolver(connector, ForestResolverConfig{}, slog.Default())
	profiles := NewProfileLoader(connector, ProfileLoaderConfig{}, slog.Default())
	return NewValidator(connector, forest, profiles, cfg, slog.Default())
}

func TestVerifyCredentials_MemberRequiresFactor(t *testing.T) {
	entry := userEntry(testUserDN, map[string][]string{
		"displayName":       {"John Doe"},
		"mail":              {"jdoe@corp.example.com"},
		"userPrincipalName": {"jdoe@corp.example.com"},
		"memberOf":          {"CN=MFA-Users,OU=Groups,DC=corp,DC=example,DC=com"},
	})
	conn := &fakeConn{searchFunc: userSearchResult(entry)}
	v := newTestValidator(conn, ValidatorConfig{
		DefaultDomain:  testDefaultDomain,
		TwoFactorGroup: "MFA-Users",
	})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "correct")

	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.False(t, res.Bypass())
	assert.Equal(t, "John Doe", res.DisplayName())
	assert.Equal(t, "jdoe@corp.example.com", res.Profile().UPN)
}

func TestVerifyCredentials_NonMemberBypasses(t *testing.T) {
	entry := userEntry(testUserDN, map[string][]string{
		"memberOf": {"CN=Staff,OU=Groups,DC=corp,DC=example,DC=com"},
	})
	conn := &fakeConn{searchFunc: userSearchResult(entry)}
	v := newTestValidator(conn, ValidatorConfig{
		DefaultDomain:  testDefaultDomain,
		TwoFactorGroup: "MFA-Users",
	})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "correct")

	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.True(t, res.Bypass())
}

func TestVerifyCredentials_UPNIdentityNeverBypasses(t *testing.T) {
	entry := userEntry(testUserDN, map[string][]string{
		"memberOf": {"CN=Staff,OU=Groups,DC=corp,DC=example,DC=com"},
	})
	conn := &fakeConn{searchFunc: userSearchResult(entry)}
	v := newTestValidator(conn, ValidatorConfig{
		DefaultDomain:  testDefaultDomain,
		TwoFactorGroup: "MFA-Users",
		UPNIdentity:    true,
	})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "correct")

	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.False(t, res.Bypass())
}

func TestVerifyCredentials_NoGroupConfiguredEveryoneRequiresFactor(t *testing.T) {
	entry := userEntry(testUserDN, nil)
	conn := &fakeConn{searchFunc: userSearchResult(entry)}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "correct")

	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.False(t, res.Bypass())
}

func TestVerifyCredentials_WrongPassword(t *testing.T) {
	conn := &fakeConn{
		bindFunc: func(username, _ string) error {
			if username == "jdoe" {
				return ldap.NewError(ldap.LDAPResultInvalidCredentials,
					errors.New("80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data 52e, v2580"))
			}
			return nil
		},
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "wrong")

	require.NoError(t, err)
	assert.False(t, res.Authenticated())
	assert.False(t, res.MustChangePassword())
	assert.Equal(t, "invalid credentials", res.Reason())
}

func TestVerifyCredentials_MustResetPasswordLoadsProfile(t *testing.T) {
	entry := userEntry(testUserDN, map[string][]string{
		"displayName": {"John Doe"},
	})
	conn := &fakeConn{
		bindFunc: func(username, _ string) error {
			if username == "jdoe" {
				return ldap.NewError(ldap.LDAPResultInvalidCredentials,
					errors.New("AcceptSecurityContext error, data 773, v2580"))
			}
			return nil
		},
		searchFunc: userSearchResult(entry),
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "expired")

	require.NoError(t, err)
	assert.False(t, res.Authenticated())
	assert.True(t, res.MustChangePassword())
	assert.Equal(t, "user must reset password", res.Reason())
	// Best-effort enrichment over the service account succeeded.
	require.NotNil(t, res.Profile())
	assert.Equal(t, "John Doe", res.DisplayName())
}

func TestVerifyCredentials_NetworkErrorSurfaces(t *testing.T) {
	conn := &fakeConn{
		bindFunc: func(username, _ string) error {
			if username == "jdoe" {
				return ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset by peer"))
			}
			return nil
		},
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	res, err := v.VerifyCredentials(context.Background(), "jdoe", "pw")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
}

func TestVerifyMembership_UserNotFound(t *testing.T) {
	conn := &fakeConn{}
	v := newTestValidator(conn, ValidatorConfig{
		DefaultDomain:  testDefaultDomain,
		TwoFactorGroup: "MFA-Users",
	})

	res, err := v.VerifyMembership(context.Background(), "ghost")

	require.NoError(t, err)
	assert.False(t, res.Authenticated())
	assert.False(t, res.Bypass())
}

func TestVerifyMembership_MemberResolved(t *testing.T) {
	entry := userEntry(testUserDN, map[string][]string{
		"userPrincipalName": {"jdoe@corp.example.com"},
		"memberOf":          {"CN=MFA-Users,OU=Groups,DC=corp,DC=example,DC=com"},
	})
	conn := &fakeConn{searchFunc: userSearchResult(entry)}
	v := newTestValidator(conn, ValidatorConfig{
		DefaultDomain:  testDefaultDomain,
		TwoFactorGroup: "MFA-Users",
	})

	res, err := v.VerifyMembership(context.Background(), "jdoe")

	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.False(t, res.Bypass())
	assert.Equal(t, "jdoe@corp.example.com", res.Profile().UPN)
}

func TestChangePassword(t *testing.T) {
	entry := userEntry(testUserDN, nil)
	var captured *ldap.PasswordModifyRequest
	conn := &fakeConn{
		searchFunc: userSearchResult(entry),
		passwordModifyFunc: func(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
			captured = req
			return &ldap.PasswordModifyResult{}, nil
		},
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	err := v.ChangePassword(context.Background(), "jdoe", "old-pw", "new-pw")

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, testUserDN, captured.UserIdentity)
	assert.Equal(t, "old-pw", captured.OldPassword)
	assert.Equal(t, "new-pw", captured.NewPassword)
}

func TestChangePassword_ServerRefusal(t *testing.T) {
	entry := userEntry(testUserDN, nil)
	conn := &fakeConn{
		searchFunc: userSearchResult(entry),
		passwordModifyFunc: func(*ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
			return nil, ldap.NewError(ldap.LDAPResultConstraintViolation, errors.New("policy"))
		},
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	err := v.ChangePassword(context.Background(), "jdoe", "old-pw", "short")

	assert.ErrorIs(t, err, domain.ErrPasswordChangeFailed)
}

func TestChangePassword_UnknownUser(t *testing.T) {
	conn := &fakeConn{}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	err := v.ChangePassword(context.Background(), "ghost", "old", "new")

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUnlockUser(t *testing.T) {
	entry := userEntry(testUserDN, nil)
	var captured *ldap.ModifyRequest
	conn := &fakeConn{
		searchFunc: userSearchResult(entry),
		modifyFunc: func(req *ldap.ModifyRequest) error {
			captured = req
			return nil
		},
	}
	v := newTestValidator(conn, ValidatorConfig{DefaultDomain: testDefaultDomain})

	err := v.UnlockUser(context.Background(), "jdoe")

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, testUserDN, captured.DN)
	require.Len(t, captured.Changes, 1)
	assert.Equal(t, "lockoutTime", captured.Changes[0].Modification.Type)
	assert.Equal(t, []string{"0"}, captured.Changes[0].Modification.Vals)
}

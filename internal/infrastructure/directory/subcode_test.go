package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBindFailure(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantKnown  bool
		wantReason string
		mustChange bool
	}{
		{
			name:       "invalid credentials",
			message:    `LDAP Result Code 49 "Invalid Credentials": 80090308: LdapErr: DSID-0C09044E, comment: AcceptSecurityContext error, data 52e, v2580`,
			wantKnown:  true,
			wantReason: "invalid credentials",
		},
		{
			name:       "password expired",
			message:    "AcceptSecurityContext error, data 532, v2580",
			wantKnown:  true,
			wantReason: "password expired",
			mustChange: true,
		},
		{
			name:       "must reset password",
			message:    "AcceptSecurityContext error, data 773, v2580",
			wantKnown:  true,
			wantReason: "user must reset password",
			mustChange: true,
		},
		{
			name:       "account locked",
			message:    "AcceptSecurityContext error, data 775, v2580",
			wantKnown:  true,
			wantReason: "account locked out",
		},
		{
			name:       "uppercase subcode",
			message:    "AcceptSecurityContext error, data 52E, v2580",
			wantKnown:  true,
			wantReason: "invalid credentials",
		},
		{
			name:      "hex subcode missing from table",
			message:   "AcceptSecurityContext error, data abc, v2580",
			wantKnown: false,
		},
		{
			name:      "no subcode pattern at all",
			message:   "connection reset by peer",
			wantKnown: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failure, known := parseBindFailure(tt.message)
			assert.Equal(t, tt.wantKnown, known)
			if known {
				assert.Equal(t, tt.wantReason, failure.Reason)
				assert.Equal(t, tt.mustChange, failure.MustChangePassword)
			}
		})
	}
}

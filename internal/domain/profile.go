package domain

import (
	"strings"
	"time"
)

// DirectoryProfile holds the attributes read from the directory for a single
// user object. Built fresh on every lookup; never cached across requests.
type DirectoryProfile struct {
	DistinguishedName  string
	DisplayName        string
	Email              string
	Phone              string
	Mobile             string
	UPN                string
	PasswordExpiration *time.Time
	RawAttributes      map[string][]string
	GroupCNs           []string
}

// MemberOf reports whether the profile carries the given group CN
// (case-insensitive).
func (p *DirectoryProfile) MemberOf(groupCN string) bool {
	for _, cn := range p.GroupCNs {
		if strings.EqualFold(cn, groupCN) {
			return true
		}
	}
	return false
}

package domain

import (
	"regexp"
	"strings"
)

// IdentityKind classifies how a raw login names a directory object.
type IdentityKind int

const (
	SamAccountName IdentityKind = iota
	UserPrincipalName
	DistinguishedName
)

func (k IdentityKind) String() string {
	switch k {
	case UserPrincipalName:
		return "userPrincipalName"
	case DistinguishedName:
		return "distinguishedName"
	default:
		return "sAMAccountName"
	}
}

// Identity is a parsed login name. Immutable after ParseIdentity.
type Identity struct {
	Kind IdentityKind
	Name string
}

// upnSuffixPattern matches a domain-like UPN suffix: dotted labels of
// letters, digits and hyphens.
var upnSuffixPattern = regexp.MustCompile(`^([A-Za-z0-9-]+\.)*[A-Za-z0-9-]+$`)

// dnPattern matches the leading attribute=value segment of a DN.
var dnPattern = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z0-9-]*\s*=`)

// ParseIdentity classifies a raw login string. It never fails: anything that
// is neither a UPN nor a DN is treated as a SAM-account name, so the same raw
// login always resolves to the same classification everywhere.
func ParseIdentity(raw string) Identity {
	if at := strings.LastIndex(raw, "@"); at > 0 && at < len(raw)-1 {
		suffix := raw[at+1:]
		if upnSuffixPattern.MatchString(suffix) {
			return Identity{Kind: UserPrincipalName, Name: raw}
		}
	}
	if dnPattern.MatchString(raw) && strings.Contains(raw, ",") {
		return Identity{Kind: DistinguishedName, Name: raw}
	}
	return Identity{Kind: SamAccountName, Name: raw}
}

// Suffix returns the UPN domain part, lower-cased, or "" for other kinds.
func (i Identity) Suffix() string {
	if i.Kind != UserPrincipalName {
		return ""
	}
	at := strings.LastIndex(i.Name, "@")
	return strings.ToLower(i.Name[at+1:])
}

// Account returns the login without its UPN suffix. For SAM and DN
// identities it is the name unchanged.
func (i Identity) Account() string {
	if i.Kind != UserPrincipalName {
		return i.Name
	}
	at := strings.LastIndex(i.Name, "@")
	return i.Name[:at]
}

// CN returns the value of the first CN segment of a DN identity, or "".
func (i Identity) CN() string {
	if i.Kind != DistinguishedName {
		return ""
	}
	for _, part := range strings.Split(i.Name, ",") {
		k, v, found := strings.Cut(part, "=")
		if found && strings.EqualFold(strings.TrimSpace(k), "cn") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

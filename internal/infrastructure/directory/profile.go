package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"dirport/internal/domain"
)

const (
	attrDisplayName    = "displayName"
	attrMail           = "mail"
	attrUPN            = "userPrincipalName"
	attrPhone          = "telephoneNumber"
	attrMobile         = "mobile"
	attrPwdLastSet     = "pwdLastSet"
	attrPasswordExpiry = "msDS-UserPasswordExpiryTimeComputed"
	attrMemberOf       = "memberOf"

	// transitiveMemberRule is the directory's chain-matching rule for
	// nested group expansion.
	transitiveMemberRule = "member:1.2.840.113556.1.4.1941:="
)

// ProfileLoaderConfig controls attribute selection and group expansion.
type ProfileLoaderConfig struct {
	UPNIdentity            bool
	ExtraIdentityAttribute string
	NestedGroups           bool
	NestedGroupBases       []string

	// SlowQueryThreshold flags (but never fails) directory queries that take
	// longer than this. Defaults to 2s.
	SlowQueryThreshold time.Duration
}

// ProfileLoader reads a user object and its group memberships from the
// directory.
type ProfileLoader struct {
	dialer Dialer
	url    string
	cfg    ProfileLoaderConfig
	logger *slog.Logger
}

// NewProfileLoader creates a loader. The dialer and URL are only used for
// referral chasing; ordinary searches run on the caller's connection.
func NewProfileLoader(connector *Connector, cfg ProfileLoaderConfig, logger *slog.Logger) *ProfileLoader {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 2 * time.Second
	}
	return &ProfileLoader{dialer: connector.Dialer(), url: connector.url, cfg: cfg, logger: logger}
}

// Load resolves the user across the candidate search bases for its identity
// kind and returns the structured profile. Exhausting every base yields
// domain.ErrUserNotFound, not a transport error.
func (l *ProfileLoader) Load(ctx context.Context, conn Conn, schema *domain.ForestSchema, defaultDomain domain.Identity, id domain.Identity) (*domain.DirectoryProfile, error) {
	bases := l.candidateBases(schema, defaultDomain, id)
	filter := fmt.Sprintf("(&(objectClass=user)(%s=%s))", identityAttribute(id), ldap.EscapeFilter(id.Name))

	var attempted []string
	for _, base := range bases {
		attempted = append(attempted, base.Name)
		entry, err := l.searchUser(ctx, conn, base.Name, filter)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		return l.buildProfile(ctx, conn, entry), nil
	}

	l.logger.InfoContext(ctx, "user not found in directory",
		"identity", id.Name, "kind", id.Kind.String(), "bases", attempted)
	return nil, domain.ErrUserNotFound
}

// candidateBases picks the base DNs to scan. SAM-account names are ambiguous
// across the forest and scan every domain; a UPN resolves to exactly one
// domain; a DN is looked up in the default domain only.
func (l *ProfileLoader) candidateBases(schema *domain.ForestSchema, defaultDomain domain.Identity, id domain.Identity) []domain.Identity {
	switch id.Kind {
	case domain.UserPrincipalName:
		return []domain.Identity{schema.MostRelevantDomain(id.Suffix(), defaultDomain)}
	case domain.DistinguishedName:
		return []domain.Identity{defaultDomain}
	default:
		if domains := schema.Domains(); len(domains) > 0 {
			return domains
		}
		return []domain.Identity{defaultDomain}
	}
}

func identityAttribute(id domain.Identity) string {
	switch id.Kind {
	case domain.UserPrincipalName:
		return attrUPN
	case domain.DistinguishedName:
		return "distinguishedName"
	default:
		return "sAMAccountName"
	}
}

func (l *ProfileLoader) attributes() []string {
	attrs := []string{
		attrDisplayName, attrMail, attrUPN, attrPhone, attrMobile,
		attrPwdLastSet, attrPasswordExpiry, attrMemberOf,
	}
	if l.cfg.ExtraIdentityAttribute != "" {
		attrs = append(attrs, l.cfg.ExtraIdentityAttribute)
	}
	return attrs
}

// searchUser runs the lookup twice: first without referral chasing, then
// following referrals. Chasing is the second pass because it is materially
// slower.
func (l *ProfileLoader) searchUser(ctx context.Context, conn Conn, baseDN, filter string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter, l.attributes(), nil,
	)

	start := time.Now()
	res, err := conn.Search(req)
	l.noteSlowQuery(ctx, baseDN, filter, time.Since(start))
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}
	if len(res.Entries) > 0 {
		return res.Entries[0], nil
	}
	if len(res.Referrals) > 0 {
		return l.chaseReferrals(ctx, res.Referrals, req)
	}
	return nil, nil
}

// chaseReferrals re-issues the search against each referred server. A
// referral that cannot be followed is logged and skipped.
func (l *ProfileLoader) chaseReferrals(ctx context.Context, referrals []string, req *ldap.SearchRequest) (*ldap.Entry, error) {
	for _, ref := range referrals {
		conn, err := l.dialer.Dial(ctx, ref)
		if err != nil {
			l.logger.WarnContext(ctx, "referral unreachable", "referral", ref, "error", err)
			continue
		}
		res, err := conn.Search(req)
		conn.Close()
		if err != nil {
			l.logger.WarnContext(ctx, "referral search failed", "referral", ref, "error", err)
			continue
		}
		if len(res.Entries) > 0 {
			return res.Entries[0], nil
		}
	}
	return nil, nil
}

func (l *ProfileLoader) buildProfile(ctx context.Context, conn Conn, entry *ldap.Entry) *domain.DirectoryProfile {
	raw := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		raw[attr.Name] = attr.Values
	}

	profile := &domain.DirectoryProfile{
		DistinguishedName:  entry.DN,
		DisplayName:        entry.GetAttributeValue(attrDisplayName),
		Email:              entry.GetAttributeValue(attrMail),
		Phone:              entry.GetAttributeValue(attrPhone),
		Mobile:             entry.GetAttributeValue(attrMobile),
		UPN:                entry.GetAttributeValue(attrUPN),
		PasswordExpiration: parseFileTime(entry.GetAttributeValue(attrPasswordExpiry)),
		RawAttributes:      raw,
	}

	profile.GroupCNs = l.groupCNs(ctx, conn, entry)
	return profile
}

// groupCNs merges direct memberOf values with, when enabled, transitively
// nested memberships, de-duplicated by CN.
func (l *ProfileLoader) groupCNs(ctx context.Context, conn Conn, entry *ldap.Entry) []string {
	seen := make(map[string]struct{})
	var cns []string
	add := func(cn string) {
		if cn == "" {
			return
		}
		key := strings.ToLower(cn)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		cns = append(cns, cn)
	}

	for _, dn := range entry.GetAttributeValues(attrMemberOf) {
		add(cnFromDN(dn))
	}

	if !l.cfg.NestedGroups {
		return cns
	}

	filter := fmt.Sprintf("(%s%s)", transitiveMemberRule, ldap.EscapeFilter(entry.DN))
	for _, base := range l.cfg.NestedGroupBases {
		req := ldap.NewSearchRequest(
			base, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
			filter, []string{"cn"}, nil,
		)
		start := time.Now()
		res, err := conn.Search(req)
		l.noteSlowQuery(ctx, base, filter, time.Since(start))
		if err != nil {
			l.logger.WarnContext(ctx, "nested group query failed, skipping base",
				"base", base, "error", err)
			continue
		}
		for _, group := range res.Entries {
			add(group.GetAttributeValue("cn"))
		}
	}
	return cns
}

func (l *ProfileLoader) noteSlowQuery(ctx context.Context, baseDN, filter string, elapsed time.Duration) {
	if elapsed > l.cfg.SlowQueryThreshold {
		l.logger.WarnContext(ctx, "slow directory query",
			"base", baseDN, "filter", filter, "elapsed_ms", elapsed.Milliseconds())
	}
}

func cnFromDN(dn string) string {
	for _, part := range strings.Split(dn, ",") {
		k, v, found := strings.Cut(part, "=")
		if found && strings.EqualFold(strings.TrimSpace(k), "cn") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseFileTime converts a directory interval timestamp (100ns ticks since
// 1601-01-01) to wall time. Zero and the never-expires sentinel map to nil.
func parseFileTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	ticks, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ticks <= 0 || ticks == int64(^uint64(0)>>1) {
		return nil
	}
	epoch := time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)
	t := epoch.Add(time.Duration(ticks/10) * time.Microsecond)
	return &t
}

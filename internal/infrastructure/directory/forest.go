package directory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/jellydator/ttlcache/v3"

	"dirport/internal/domain"
)

// ForestResolverConfig controls trusted-domain discovery.
type ForestResolverConfig struct {
	// IncludedDomains, when non-empty, is the only set of trusted-domain
	// FQDNs admitted into the schema. Otherwise ExcludedDomains removes
	// matches and everything else is permitted.
	IncludedDomains []string
	ExcludedDomains []string

	// SchemaTTL bounds how long a discovered schema is reused across login
	// attempts. Zero disables caching.
	SchemaTTL time.Duration
}

// ForestResolver discovers the forest's trusted domains and their alternate
// UPN suffixes, producing the suffix→domain schema used to pick search bases.
type ForestResolver struct {
	connector *Connector
	cfg       ForestResolverConfig
	cache     *ttlcache.Cache[string, *domain.ForestSchema]
	logger    *slog.Logger
}

// NewForestResolver creates a resolver backed by the given connector.
func NewForestResolver(connector *Connector, cfg ForestResolverConfig, logger *slog.Logger) *ForestResolver {
	r := &ForestResolver{connector: connector, cfg: cfg, logger: logger}
	if cfg.SchemaTTL > 0 {
		// Touch-on-hit would turn the TTL into a sliding window and a busy
		// forest would never rediscover; the TTL bounds staleness instead.
		r.cache = ttlcache.New[string, *domain.ForestSchema](
			ttlcache.WithTTL[string, *domain.ForestSchema](cfg.SchemaTTL),
			ttlcache.WithDisableTouchOnHit[string, *domain.ForestSchema](),
		)
		go r.cache.Start()
	}
	return r
}

// Load builds (or returns the cached) schema rooted at rootDomain, a DN-form
// identity naming the forest root. Failures never propagate: the worst case
// is a schema holding only the root domain, so callers can still fall back to
// a single default domain.
func (r *ForestResolver) Load(ctx context.Context, rootDomain domain.Identity) *domain.ForestSchema {
	if r.cache != nil {
		if item := r.cache.Get(rootDomain.Name); item != nil {
			return item.Value()
		}
	}

	schema := r.load(ctx, rootDomain)

	if r.cache != nil && schema.Len() > 0 {
		r.cache.Set(rootDomain.Name, schema, ttlcache.DefaultTTL)
	}
	return schema
}

func (r *ForestResolver) load(ctx context.Context, rootDomain domain.Identity) *domain.ForestSchema {
	rootFQDN := FQDNFromDomainDN(rootDomain.Name)
	fallback := domain.NewForestSchema(map[string]domain.Identity{rootFQDN: rootDomain})

	conn, err := r.connector.ServiceConn(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "forest discovery unavailable, using root domain only",
			"root", rootFQDN, "error", err)
		return fallback
	}
	defer conn.Close()

	domains := map[string]domain.Identity{rootFQDN: rootDomain}

	trusted, err := r.trustedDomains(conn, rootDomain)
	if err != nil {
		r.logger.ErrorContext(ctx, "trusted domain query failed, using root domain only",
			"root", rootFQDN, "error", err)
		return fallback
	}
	for _, fqdn := range trusted {
		if !r.permitted(fqdn) {
			continue
		}
		domains[fqdn] = domain.Identity{Kind: domain.DistinguishedName, Name: DomainDN(fqdn)}
	}

	entries := make(map[string]domain.Identity, len(domains))
	for fqdn, dom := range domains {
		entries[fqdn] = dom
	}

	// Alternate UPN suffixes live in the Partitions container of each
	// top-level domain; child domains share their parent's configuration
	// partition, so only non-children are queried. Child filtering is decided
	// against the domain set alone: a discovered suffix is a lookup key, not a
	// domain, and must not shadow one.
	for fqdn, dom := range domains {
		if isChildOf(fqdn, domains) {
			continue
		}
		suffixes, err := r.upnSuffixes(conn, dom)
		if err != nil {
			r.logger.WarnContext(ctx, "UPN suffix query failed, skipping domain",
				"domain", fqdn, "error", err)
			continue
		}
		for _, suffix := range suffixes {
			key := strings.ToLower(suffix)
			if _, present := entries[key]; !present {
				entries[key] = dom
			}
		}
	}

	return domain.NewForestSchema(entries)
}

// trustedDomains lists the CNs of trustedDomain objects in the root's System
// container.
func (r *ForestResolver) trustedDomains(conn Conn, rootDomain domain.Identity) ([]string, error) {
	req := ldap.NewSearchRequest(
		"CN=System,"+rootDomain.Name,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=trustedDomain)",
		[]string{"cn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	var fqdns []string
	for _, entry := range res.Entries {
		if cn := entry.GetAttributeValue("cn"); cn != "" {
			fqdns = append(fqdns, strings.ToLower(cn))
		}
	}
	return fqdns, nil
}

// upnSuffixes reads the uPNSuffixes values from a domain's Partitions
// container.
func (r *ForestResolver) upnSuffixes(conn Conn, dom domain.Identity) ([]string, error) {
	req := ldap.NewSearchRequest(
		"CN=Partitions,CN=Configuration,"+dom.Name,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		"(uPNSuffixes=*)",
		[]string{"uPNSuffixes"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	var suffixes []string
	for _, entry := range res.Entries {
		suffixes = append(suffixes, entry.GetAttributeValues("uPNSuffixes")...)
	}
	return suffixes, nil
}

func (r *ForestResolver) permitted(fqdn string) bool {
	if len(r.cfg.IncludedDomains) > 0 {
		return containsFold(r.cfg.IncludedDomains, fqdn)
	}
	return !containsFold(r.cfg.ExcludedDomains, fqdn)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// isChildOf reports whether fqdn is a dot-child of another domain in the set.
func isChildOf(fqdn string, entries map[string]domain.Identity) bool {
	for other := range entries {
		if other != fqdn && strings.HasSuffix(fqdn, "."+other) {
			return true
		}
	}
	return false
}

// DomainDN converts an FQDN like "corp.local" to "DC=corp,DC=local".
func DomainDN(fqdn string) string {
	labels := strings.Split(fqdn, ".")
	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = "DC=" + label
	}
	return strings.Join(parts, ",")
}

// FQDNFromDomainDN is the inverse of DomainDN; non-DC segments are ignored.
func FQDNFromDomainDN(dn string) string {
	var labels []string
	for _, part := range strings.Split(dn, ",") {
		k, v, found := strings.Cut(part, "=")
		if found && strings.EqualFold(strings.TrimSpace(k), "dc") {
			labels = append(labels, strings.TrimSpace(v))
		}
	}
	return strings.ToLower(strings.Join(labels, "."))
}

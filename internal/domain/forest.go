package domain

import (
	"sort"
	"strings"
)

// ForestSchema maps UPN suffixes (lower-cased FQDNs or alternate suffixes) to
// the DN identity of the domain that owns them. Keys are case-insensitively
// unique; the root domain's own suffix is always present. Read-only once
// built.
type ForestSchema struct {
	domains map[string]Identity
	// suffixes holds the keys ordered longest-first so that suffix matching
	// prefers the most specific domain.
	suffixes []string
}

// NewForestSchema builds a schema from suffix→domain pairs. Duplicate
// suffixes (case-insensitive) keep the first mapping.
func NewForestSchema(entries map[string]Identity) *ForestSchema {
	s := &ForestSchema{domains: make(map[string]Identity, len(entries))}
	for suffix, dom := range entries {
		s.add(suffix, dom)
	}
	s.sortSuffixes()
	return s
}

func (s *ForestSchema) add(suffix string, dom Identity) {
	key := strings.ToLower(suffix)
	if _, exists := s.domains[key]; exists {
		return
	}
	s.domains[key] = dom
	s.suffixes = append(s.suffixes, key)
}

func (s *ForestSchema) sortSuffixes() {
	sort.Slice(s.suffixes, func(i, j int) bool {
		if len(s.suffixes[i]) != len(s.suffixes[j]) {
			return len(s.suffixes[i]) > len(s.suffixes[j])
		}
		return s.suffixes[i] < s.suffixes[j]
	})
}

// Suffixes returns the schema's suffixes, most specific first.
func (s *ForestSchema) Suffixes() []string {
	out := make([]string, len(s.suffixes))
	copy(out, s.suffixes)
	return out
}

// Domains returns every distinct domain identity in the schema.
func (s *ForestSchema) Domains() []Identity {
	seen := make(map[string]struct{}, len(s.domains))
	var out []Identity
	for _, suffix := range s.suffixes {
		dom := s.domains[suffix]
		if _, dup := seen[dom.Name]; dup {
			continue
		}
		seen[dom.Name] = struct{}{}
		out = append(out, dom)
	}
	return out
}

// Len reports the number of suffix entries.
func (s *ForestSchema) Len() int { return len(s.suffixes) }

// MostRelevantDomain resolves a user's UPN suffix to a domain. Exact
// case-insensitive match wins; otherwise the first (most specific) schema
// suffix that is a dot-suffix of the user's suffix wins; otherwise the
// caller's default domain is returned.
func (s *ForestSchema) MostRelevantDomain(suffix string, defaultDomain Identity) Identity {
	key := strings.ToLower(suffix)
	if dom, ok := s.domains[key]; ok {
		return dom
	}
	for _, candidate := range s.suffixes {
		if strings.HasSuffix(key, "."+candidate) {
			return s.domains[candidate]
		}
	}
	return defaultDomain
}

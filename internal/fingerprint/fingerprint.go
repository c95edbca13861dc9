// Package fingerprint computes the canonical identity key for a business
// record. The remote businesses table derives the same key in a generated
// column (see store.Migrate), so the normalization here must stay bit-exact
// with that SQL expression: any divergence silently breaks dedup.
package fingerprint

import (
	"strings"

	"github.com/handyman-tn/leadsync/internal/model"
)

// NoSite is the sentinel used when a record has no website.
const NoSite = "no-site"

// Compute returns the canonical key for a record. A non-empty source URL is
// the most stable identity the extractor can produce and wins outright;
// otherwise the key is normalized name + "|" + normalized website.
func Compute(b model.Business) string {
	if u := strings.TrimSpace(b.SourceURL); u != "" {
		return strings.ToLower(u)
	}
	return NormalizeName(b.Name) + "|" + NormalizeWebsite(b.Website)
}

// NormalizeName collapses internal whitespace, trims, and lowercases.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeWebsite lowercases, trims, and strips the scheme, a leading
// "www.", and trailing slashes. An empty website maps to the NoSite sentinel.
func NormalizeWebsite(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	if s == "" {
		return NoSite
	}
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimRight(s, "/")
	if s == "" {
		return NoSite
	}
	return s
}

// MatchesDomain reports whether a record's website resolves to the given
// domain. Both sides are normalized, and only the host portion of the
// website is compared, so "https://www.handyman-tn.com/contact" matches
// "handyman-tn.com".
func MatchesDomain(website, domain string) bool {
	if strings.TrimSpace(domain) == "" {
		return false
	}
	site := NormalizeWebsite(website)
	if site == NoSite {
		return false
	}
	host, _, _ := strings.Cut(site, "/")
	return host == NormalizeWebsite(domain)
}

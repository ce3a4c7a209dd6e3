package dmarc

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// OrgDomainFunc derives the organizational domain for a fully-qualified
// domain. The evaluator takes one so the public-suffix machinery can be
// replaced, e.g. with a private suffix table in tests.
type OrgDomainFunc func(domain string) string

// OrganizationalDomain returns the organizational domain: the registrable
// domain directly under the public suffix, per the ICANN section of the
// Public Suffix List as RFC 7489 requires.
//
//	example.com        -> example.com
//	sub.example.com    -> example.com
//	sub.example.co.uk  -> example.co.uk
//
// When the suffix list cannot place the domain (e.g. "localhost", a bare
// TLD, or garbage input), the input is returned unchanged. That fallback is
// deliberate: alignment then degrades to comparing the inputs themselves
// rather than silently failing every check.
func OrganizationalDomain(domain string) string {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ""
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return etld1
}

// Aligned reports whether an authenticated domain (an SPF MailFrom domain or
// a DKIM signing domain) is aligned with the From-header domain.
//
// Strict mode requires exact equality, relaxed mode equal organizational
// domains. An empty authenticated domain never aligns.
func Aligned(authDomain, fromDomain string, mode Align) bool {
	return alignedWith(authDomain, fromDomain, mode, OrganizationalDomain)
}

func alignedWith(authDomain, fromDomain string, mode Align, orgDomain OrgDomainFunc) bool {
	auth := normalizeDomain(authDomain)
	from := normalizeDomain(fromDomain)
	if auth == "" || from == "" {
		return false
	}

	if mode == AlignStrict {
		return auth == from
	}
	return orgDomain(auth) == orgDomain(from)
}

// IsSubdomain reports whether domain is parent itself or a subdomain of it.
func IsSubdomain(domain, parent string) bool {
	d := normalizeDomain(domain)
	p := normalizeDomain(parent)
	return d == p || strings.HasSuffix(d, "."+p)
}

// normalizeDomain lower-cases a domain and strips the trailing dot.
func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(domain), ".")
}

package dmarc

import (
	"fmt"
	"strings"
)

// ReportURI is a destination for DMARC aggregate or failure reports, with an
// optional maximum report size.
type ReportURI struct {
	// Address is the full URI, typically "mailto:...".
	Address string

	// MaxSize is the optional maximum report size, 0 when unset.
	MaxSize uint64

	// Unit is the size unit: "" (bytes), "k", "m", "g" or "t", powers of 2.
	Unit string
}

// String returns the URI as it appears in a DMARC record.
func (u ReportURI) String() string {
	s := strings.ReplaceAll(u.Address, ",", "%2C")
	s = strings.ReplaceAll(s, "!", "%21")
	if u.MaxSize > 0 {
		s += fmt.Sprintf("!%d", u.MaxSize)
	}
	return s + u.Unit
}

// Record is a parsed DMARC DNS TXT record, e.g.
//
//	v=DMARC1; p=reject; sp=quarantine; rua=mailto:dmarc@example.com
type Record struct {
	// Version must be "DMARC1".
	Version string

	// Policy is the requested handling for failing messages (p=). Required.
	Policy Policy

	// SubdomainPolicy overrides Policy for subdomains (sp=). Empty when
	// unset; Policy applies then.
	SubdomainPolicy Policy

	// ADKIM is the DKIM alignment mode (adkim=). Default relaxed.
	ADKIM Align

	// ASPF is the SPF alignment mode (aspf=). Default relaxed.
	ASPF Align

	// Percentage is the fraction of failing messages the policy applies to
	// (pct=), 0-100. Default 100.
	Percentage int

	// AggregateAddresses are destinations for aggregate reports (rua=).
	AggregateAddresses []ReportURI

	// FailureAddresses are destinations for failure reports (ruf=).
	FailureAddresses []ReportURI

	// ReportingInterval is the aggregate reporting interval in seconds
	// (ri=). Default 86400.
	ReportingInterval int

	// FailureOptions control when failure reports are requested (fo=):
	// "0" all mechanisms fail (default), "1" any mechanism fails,
	// "d" DKIM failure, "s" SPF failure.
	FailureOptions []string

	// ReportingFormat is the requested failure report format (rf=).
	// Default "afrf".
	ReportingFormat []string
}

// DefaultRecord holds the tag defaults of RFC 7489 Section 6.3.
var DefaultRecord = Record{
	Version:           "DMARC1",
	ADKIM:             AlignRelaxed,
	ASPF:              AlignRelaxed,
	Percentage:        100,
	ReportingInterval: 86400,
	FailureOptions:    []string{"0"},
	ReportingFormat:   []string{"afrf"},
}

// String returns the record formatted for a DNS TXT value. Tags with default
// values are omitted.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString("v=")
	b.WriteString(r.Version)

	tag := func(do bool, name, value string) {
		if do {
			fmt.Fprintf(&b, "; %s=%s", name, value)
		}
	}

	tag(r.Policy != "", "p", string(r.Policy))
	tag(r.SubdomainPolicy != PolicyEmpty, "sp", string(r.SubdomainPolicy))
	tag(r.ADKIM != AlignRelaxed, "adkim", string(r.ADKIM))
	tag(r.ASPF != AlignRelaxed, "aspf", string(r.ASPF))
	tag(r.Percentage != 100, "pct", fmt.Sprintf("%d", r.Percentage))

	if len(r.AggregateAddresses) > 0 {
		tag(true, "rua", joinURIs(r.AggregateAddresses))
	}
	if len(r.FailureAddresses) > 0 {
		tag(true, "ruf", joinURIs(r.FailureAddresses))
	}

	tag(r.ReportingInterval != 86400, "ri", fmt.Sprintf("%d", r.ReportingInterval))
	if len(r.FailureOptions) > 0 && !(len(r.FailureOptions) == 1 && r.FailureOptions[0] == "0") {
		tag(true, "fo", strings.Join(r.FailureOptions, ":"))
	}
	if len(r.ReportingFormat) > 0 && !(len(r.ReportingFormat) == 1 && r.ReportingFormat[0] == "afrf") {
		tag(true, "rf", strings.Join(r.ReportingFormat, ":"))
	}

	return b.String()
}

func joinURIs(uris []ReportURI) string {
	addrs := make([]string, len(uris))
	for i, u := range uris {
		addrs[i] = u.String()
	}
	return strings.Join(addrs, ",")
}

// EffectivePolicy returns the policy to apply: SubdomainPolicy when the
// From domain is a subdomain of the domain the record was published at and
// sp= is set, Policy otherwise.
func (r *Record) EffectivePolicy(isSubdomain bool) Policy {
	if isSubdomain && r.SubdomainPolicy != PolicyEmpty {
		return r.SubdomainPolicy
	}
	return r.Policy
}

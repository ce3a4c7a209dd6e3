package dmarc

import (
	"context"
	"fmt"

	"github.com/anaaviles/spamassassin-dmarc/dns"
)

// Lookup looks up the DMARC policy record for the given From-header domain.
//
// It queries "_dmarc.<domain>" first. If nothing is found there and the
// domain is not itself an organizational domain, it falls back to
// "_dmarc.<orgdomain>", since policy may be published at the organizational
// level only (RFC 7489 Section 6.6.3).
//
// Returns:
//   - status: StatusNone when no usable record exists, StatusTemperror on
//     DNS failure.
//   - recordDomain: the domain the record was found at (or last queried).
//   - record: the parsed record, nil when absent, malformed or ambiguous.
//   - txt: the raw TXT string of the record.
//   - authentic: whether all DNS responses involved were DNSSEC-validated.
//   - err: detail for non-record outcomes: ErrNoRecord, ErrSyntax,
//     ErrMultipleRecords, or an ErrDNS wrap.
//
// A malformed record and multiple DMARC records at one name are both treated
// exactly like an absent record, never as an implicit stricter policy.
func Lookup(ctx context.Context, resolver dns.Resolver, fromDomain string) (status Status, recordDomain string, record *Record, txt string, authentic bool, err error) {
	return lookup(ctx, resolver, fromDomain, OrganizationalDomain)
}

func lookup(ctx context.Context, resolver dns.Resolver, fromDomain string, orgDomain OrgDomainFunc) (Status, string, *Record, string, bool, error) {
	recordDomain := normalizeDomain(fromDomain)

	status, record, txt, authentic, err := lookupRecord(ctx, resolver, recordDomain)
	if status != StatusNone || record != nil {
		return status, recordDomain, record, txt, authentic, err
	}

	org := orgDomain(recordDomain)
	if org == recordDomain {
		return StatusNone, recordDomain, nil, txt, authentic, err
	}

	recordDomain = org
	status, record, txt, orgAuthentic, err := lookupRecord(ctx, resolver, recordDomain)
	// Authentic only when every response in the chain was.
	authentic = authentic && orgAuthentic

	return status, recordDomain, record, txt, authentic, err
}

// lookupRecord queries _dmarc.<domain> and picks out the single DMARC record.
func lookupRecord(ctx context.Context, resolver dns.Resolver, domain string) (Status, *Record, string, bool, error) {
	result, err := resolver.LookupTXT(ctx, dns.FQDN("_dmarc."+domain))
	if err != nil {
		if dns.IsNotFound(err) {
			return StatusNone, nil, "", result.Authentic, ErrNoRecord
		}
		return StatusTemperror, nil, "", result.Authentic, fmt.Errorf("%w: %v", ErrDNS, err)
	}

	var record *Record
	var text string

	for _, s := range result.Records {
		r, isDMARC, parseErr := ParseRecord(s)
		if !isDMARC {
			// Unrelated TXT record at the same name.
			continue
		}
		if parseErr != nil {
			return StatusNone, nil, s, result.Authentic, parseErr
		}
		if record != nil {
			// RFC 7489 Section 6.6.3: multiple records mean the
			// domain does not implement DMARC.
			return StatusNone, nil, "", result.Authentic, ErrMultipleRecords
		}
		record = r
		text = s
	}

	if record == nil {
		return StatusNone, nil, "", result.Authentic, ErrNoRecord
	}
	return StatusNone, record, text, result.Authentic, nil
}

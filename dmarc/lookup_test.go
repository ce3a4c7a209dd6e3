package dmarc

import (
	"context"
	"errors"
	"testing"

	"github.com/anaaviles/spamassassin-dmarc/dns"
)

func TestLookup(t *testing.T) {
	resolver := &dns.MockResolver{
		TXT: map[string][]string{
			"_dmarc.example.com.":       {"v=DMARC1; p=reject"},
			"_dmarc.other.example.":     {"v=DMARC1; p=none", "v=DMARC1; p=quarantine"},
			"_dmarc.malformed.example.": {"v=DMARC1; p=bogus"},
			"_dmarc.unrelated.example.": {"v=spf1 -all"},
		},
		Fail:      []string{"_dmarc.servfail.example."},
		Authentic: []string{"_dmarc.example.com."},
	}
	ctx := context.Background()

	lookup := func(domain string) (Status, string, *Record, bool, error) {
		t.Helper()
		status, recordDomain, record, _, authentic, err := Lookup(ctx, resolver, domain)
		return status, recordDomain, record, authentic, err
	}

	// Record at the exact domain.
	status, domain, record, authentic, err := lookup("example.com")
	if err != nil {
		t.Fatalf("lookup example.com: %v", err)
	}
	if status != StatusNone || domain != "example.com" || record == nil || record.Policy != PolicyReject {
		t.Fatalf("lookup example.com: got status %v domain %q record %v", status, domain, record)
	}
	if !authentic {
		t.Error("expected authentic result for example.com")
	}

	// Subdomain without its own record falls back to the organizational
	// domain.
	_, domain, record, authentic, err = lookup("mail.sub.example.com")
	if err != nil {
		t.Fatalf("lookup mail.sub.example.com: %v", err)
	}
	if domain != "example.com" || record == nil || record.Policy != PolicyReject {
		t.Fatalf("org fallback: got domain %q record %v", domain, record)
	}
	// First response was a not-found without DNSSEC proof here.
	if authentic {
		t.Error("org fallback: combined result must not be authentic")
	}
	if n := resolver.Queries("_dmarc.mail.sub.example.com"); n != 1 {
		t.Errorf("subdomain queried %d times, want 1", n)
	}
	if n := resolver.Queries("_dmarc.example.com"); n < 2 {
		t.Errorf("org domain queried %d times, want 2", n)
	}

	// No record anywhere.
	status, _, record, _, err = lookup("absent.example")
	if status != StatusNone || record != nil || !errors.Is(err, ErrNoRecord) {
		t.Fatalf("absent: got status %v record %v err %v", status, record, err)
	}

	// Multiple DMARC records: treated as absent.
	status, _, record, _, err = lookup("other.example")
	if status != StatusNone || record != nil || !errors.Is(err, ErrMultipleRecords) {
		t.Fatalf("multiple: got status %v record %v err %v", status, record, err)
	}

	// Malformed record: treated as absent, never as reject.
	status, _, record, _, err = lookup("malformed.example")
	if status != StatusNone || record != nil || !errors.Is(err, ErrSyntax) {
		t.Fatalf("malformed: got status %v record %v err %v", status, record, err)
	}

	// Unrelated TXT records at the _dmarc name are skipped.
	status, _, record, _, err = lookup("unrelated.example")
	if status != StatusNone || record != nil || !errors.Is(err, ErrNoRecord) {
		t.Fatalf("unrelated: got status %v record %v err %v", status, record, err)
	}

	// DNS failure is a distinct temporary outcome.
	status, _, record, _, err = lookup("servfail.example")
	if status != StatusTemperror || record != nil || !errors.Is(err, ErrDNS) {
		t.Fatalf("servfail: got status %v record %v err %v", status, record, err)
	}
}

package dmarc

import "testing"

func TestOrganizationalDomain(t *testing.T) {
	check := func(domain, want string) {
		t.Helper()
		if got := OrganizationalDomain(domain); got != want {
			t.Errorf("OrganizationalDomain(%q) = %q, want %q", domain, got, want)
		}
	}

	check("example.com", "example.com")
	check("sub.example.com", "example.com")
	check("a.b.c.example.com", "example.com")
	check("sub.example.co.uk", "example.co.uk")
	check("Example.COM.", "example.com")
	check("", "")

	// Not resolvable against the suffix table: returned unchanged rather
	// than silently dropped.
	check("localhost", "localhost")
	check("com", "com")
}

func TestAligned(t *testing.T) {
	check := func(auth, from string, mode Align, want bool) {
		t.Helper()
		if got := Aligned(auth, from, mode); got != want {
			t.Errorf("Aligned(%q, %q, %q) = %v, want %v", auth, from, mode, got, want)
		}
	}

	// Strict: exact match only, case-insensitive.
	check("example.com", "example.com", AlignStrict, true)
	check("Example.COM", "example.com", AlignStrict, true)
	check("mail.example.com", "example.com", AlignStrict, false)
	check("example.com", "mail.example.com", AlignStrict, false)

	// Relaxed: organizational domains must match.
	check("mail.example.com", "example.com", AlignRelaxed, true)
	check("example.com", "mail.example.com", AlignRelaxed, true)
	check("a.b.example.com", "c.example.com", AlignRelaxed, true)
	check("example.org", "example.com", AlignRelaxed, false)

	// Directionality: an authenticated domain aligned with one From
	// domain says nothing about a different From domain that merely
	// shares a suffix shape.
	check("mail.example.com", "example.com", AlignRelaxed, true)
	check("example.com", "mail.other.com", AlignRelaxed, false)
	check("other.com", "example.com", AlignRelaxed, false)

	// Empty authenticated domain never aligns.
	check("", "example.com", AlignStrict, false)
	check("", "example.com", AlignRelaxed, false)
	check("example.com", "", AlignRelaxed, false)
}

func TestIsSubdomain(t *testing.T) {
	check := func(domain, parent string, want bool) {
		t.Helper()
		if got := IsSubdomain(domain, parent); got != want {
			t.Errorf("IsSubdomain(%q, %q) = %v, want %v", domain, parent, got, want)
		}
	}

	check("example.com", "example.com", true)
	check("sub.example.com", "example.com", true)
	check("Sub.Example.Com.", "example.com", true)
	check("example.com", "sub.example.com", false)
	check("badexample.com", "example.com", false)
	check("example.org", "example.com", false)
}

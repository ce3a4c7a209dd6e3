// Package dns provides the TXT-record lookup abstraction used for DMARC
// policy retrieval.
//
// The Resolver interface is deliberately small: DMARC evaluation needs exactly
// one kind of query, a TXT lookup for "_dmarc.<domain>". Production code uses
// NetResolver (github.com/miekg/dns, with optional DNSSEC validation) or
// StdResolver (net.Resolver). Tests use MockResolver. Wrap any of them in
// DedupResolver when sharing across concurrent workers to coalesce identical
// in-flight queries.
package dns

import (
	"context"
	"errors"
	"strings"
)

// Result is the outcome of a TXT lookup.
type Result struct {
	// Records are the TXT strings found. Multi-string records have been
	// joined into a single string per record.
	Records []string

	// Authentic reports whether the DNS response was DNSSEC-validated.
	// Always false for resolvers without DNSSEC support.
	Authentic bool
}

// Resolver looks up TXT records. Implementations must be safe for concurrent
// use and must honor context cancellation.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) (Result, error)
}

// Lookup errors.
var (
	// ErrNotFound indicates NXDOMAIN or a response with no TXT records.
	ErrNotFound = errors.New("dns: no records found")

	// ErrServFail indicates the server returned SERVFAIL.
	ErrServFail = errors.New("dns: server failure")

	// ErrTimeout indicates the query timed out.
	ErrTimeout = errors.New("dns: query timed out")

	// ErrRefused indicates the server refused the query.
	ErrRefused = errors.New("dns: query refused")

	// ErrBogus indicates DNSSEC validation failed upstream. The response
	// must not be trusted.
	ErrBogus = errors.New("dns: dnssec validation failed")
)

// IsNotFound reports whether err means the name definitively does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTemporary reports whether err is a transient lookup failure that may
// succeed on retry. Cancellation and deadline expiry count as temporary:
// the caller gave up, the zone said nothing.
func IsTemporary(err error) bool {
	return errors.Is(err, ErrServFail) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRefused) ||
		errors.Is(err, ErrBogus) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// FQDN returns name with a trailing dot.
func FQDN(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

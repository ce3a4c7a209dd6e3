package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// StdResolver is a Resolver backed by the standard library net package.
// It has no DNSSEC support; Result.Authentic is always false.
type StdResolver struct {
	resolver *net.Resolver
}

var _ Resolver = (*StdResolver)(nil)

// NewStdResolver creates a resolver using net.DefaultResolver.
func NewStdResolver() *StdResolver {
	return &StdResolver{resolver: net.DefaultResolver}
}

// NewStdResolverWithDialer creates a resolver with a custom dialer, for use
// with non-default DNS servers.
func NewStdResolverWithDialer(dial func(ctx context.Context, network, address string) (net.Conn, error)) *StdResolver {
	return &StdResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial:     dial,
		},
	}
}

// LookupTXT retrieves TXT records for name.
func (r *StdResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	// The stdlib resolver wants names without the trailing dot.
	name = strings.TrimSuffix(name, ".")

	records, err := r.resolver.LookupTXT(ctx, name)
	if err != nil {
		return Result{}, convertError(err)
	}
	if len(records) == 0 {
		return Result{}, ErrNotFound
	}
	return Result{Records: records}, nil
}

// convertError maps net.DNSError conditions onto this package's errors.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return ErrNotFound
		case dnsErr.IsTimeout:
			return ErrTimeout
		case dnsErr.IsTemporary:
			return ErrServFail
		}
	}

	return fmt.Errorf("dns lookup failed: %w", err)
}

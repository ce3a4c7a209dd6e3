package dns

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// DedupResolver wraps a Resolver so that concurrent lookups for the same name
// are coalesced into a single query. In a concurrent message-processing
// pipeline many workers can see mail from the same domain at once; without
// coalescing each would issue its own "_dmarc.<domain>" query.
//
// Only in-flight queries are shared. Nothing is cached after a lookup
// completes; a later lookup for the same name queries again.
type DedupResolver struct {
	resolver Resolver
	group    singleflight.Group
}

var _ Resolver = (*DedupResolver)(nil)

// NewDedupResolver wraps resolver with in-flight query coalescing.
// The wrapped resolver must be safe for concurrent use.
func NewDedupResolver(resolver Resolver) *DedupResolver {
	return &DedupResolver{resolver: resolver}
}

// LookupTXT looks up TXT records for name, joining an identical in-flight
// lookup if one exists.
//
// The context of the first caller drives the shared query. A caller whose own
// context ends while waiting gets its context error instead of blocking on a
// result it no longer wants.
func (r *DedupResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	key := FQDN(name)

	ch := r.group.DoChan(key, func() (any, error) {
		res, err := r.resolver.LookupTXT(ctx, name)
		return res, err
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case v := <-ch:
		if v.Err != nil {
			return Result{}, v.Err
		}
		return v.Val.(Result), nil
	}
}

package dns

import (
	"context"
	"slices"
	"sync"
)

// MockResolver is a Resolver for tests. TXT maps FQDNs (with trailing dot) to
// TXT strings. It records how often each name is queried so tests can assert
// lookup counts, e.g. that memoized evaluations do not query twice.
type MockResolver struct {
	// TXT maps FQDN to TXT record strings.
	TXT map[string][]string

	// Fail lists FQDNs whose lookup returns ErrServFail.
	Fail []string

	// AllAuthentic sets the default Authentic value for responses.
	// Overridden per name by Authentic and Inauthentic.
	AllAuthentic bool

	// Authentic lists FQDNs whose responses have Authentic=true.
	Authentic []string

	// Inauthentic lists FQDNs whose responses have Authentic=false.
	Inauthentic []string

	mu      sync.Mutex
	queries map[string]int
}

var _ Resolver = (*MockResolver)(nil)

// LookupTXT returns the configured TXT records for name.
func (r *MockResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	fqdn := FQDN(name)

	r.mu.Lock()
	if r.queries == nil {
		r.queries = make(map[string]int)
	}
	r.queries[fqdn]++
	r.mu.Unlock()

	result := Result{Authentic: r.AllAuthentic}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if slices.Contains(r.Fail, fqdn) {
		return result, ErrServFail
	}
	if slices.Contains(r.Authentic, fqdn) {
		result.Authentic = true
	}
	if slices.Contains(r.Inauthentic, fqdn) {
		result.Authentic = false
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return result, ErrNotFound
	}

	result.Records = records
	return result, nil
}

// Queries returns how many times name has been looked up.
func (r *MockResolver) Queries(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[FQDN(name)]
}

// TotalQueries returns the total number of lookups across all names.
func (r *MockResolver) TotalQueries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.queries {
		total += n
	}
	return total
}

package dns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// ResolverConfig configures NetResolver.
type ResolverConfig struct {
	// Nameservers are the DNS servers to query, as "host:port". If empty,
	// servers from /etc/resolv.conf are used, falling back to public DNS.
	Nameservers []string

	// DNSSEC enables the EDNS0 DO bit. Requires DNSSEC-validating upstream
	// resolvers; the AD bit of responses is surfaced as Result.Authentic.
	DNSSEC bool

	// Timeout is the per-query timeout. Default 5 seconds.
	Timeout time.Duration

	// Retries is the number of retries over the nameserver list after the
	// first failed round. Default 2.
	Retries int
}

// NetResolver is a Resolver backed by github.com/miekg/dns. It is safe for
// concurrent use and may be shared across workers.
type NetResolver struct {
	config ResolverConfig
	client *mdns.Client
}

var _ Resolver = (*NetResolver)(nil)

// NewNetResolver creates a resolver with the given configuration, filling in
// defaults for zero fields.
func NewNetResolver(config ResolverConfig) *NetResolver {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Retries == 0 {
		config.Retries = 2
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = systemNameservers()
	}

	return &NetResolver{
		config: config,
		client: &mdns.Client{Timeout: config.Timeout},
	}
}

// Config returns the resolver's effective configuration.
func (r *NetResolver) Config() ResolverConfig {
	return r.config
}

// systemNameservers reads resolv.conf, falling back to public DNS servers.
func systemNameservers() []string {
	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, s := range config.Servers {
		if !strings.Contains(s, ":") {
			s = s + ":" + config.Port
		}
		servers = append(servers, s)
	}
	return servers
}

// LookupTXT retrieves TXT records for name. Multi-string TXT records are
// joined per RFC 7208 Section 3.3.
func (r *NetResolver) LookupTXT(ctx context.Context, name string) (Result, error) {
	m := new(mdns.Msg)
	m.SetQuestion(FQDN(name), mdns.TypeTXT)
	m.RecursionDesired = true
	if r.config.DNSSEC {
		m.SetEdns0(4096, true)
	}

	var lastErr error
	authentic := false

	for i := 0; i <= r.config.Retries; i++ {
		for _, server := range r.config.Nameservers {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}

			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return Result{}, err
				}
				lastErr = fmt.Errorf("%w: %v", ErrTimeout, err)
				continue
			}

			if r.config.DNSSEC && resp.AuthenticatedData {
				authentic = true
			}

			switch resp.Rcode {
			case mdns.RcodeSuccess:
				return txtResult(resp, authentic)
			case mdns.RcodeNameError:
				return Result{Authentic: authentic}, ErrNotFound
			case mdns.RcodeServerFailure:
				// SERVFAIL may mean upstream DNSSEC validation failed.
				if r.config.DNSSEC {
					lastErr = ErrBogus
				} else {
					lastErr = ErrServFail
				}
			case mdns.RcodeRefused:
				lastErr = ErrRefused
			default:
				lastErr = fmt.Errorf("%w: unexpected rcode %d", ErrServFail, resp.Rcode)
			}
		}
	}

	if lastErr != nil {
		return Result{Authentic: authentic}, lastErr
	}
	return Result{Authentic: authentic}, ErrServFail
}

func txtResult(resp *mdns.Msg, authentic bool) (Result, error) {
	var records []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*mdns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}

	if len(records) == 0 {
		return Result{Authentic: authentic}, ErrNotFound
	}
	return Result{Records: records, Authentic: authentic}, nil
}

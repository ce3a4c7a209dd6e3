package dmarc

import (
	"context"
	"math/rand"
	"net/mail"
	"strings"

	"github.com/anaaviles/spamassassin-dmarc/dns"
)

// Evaluation is the per-message working set for one DMARC evaluation. It is
// created once per message, owned by a single caller, and discarded after the
// verdict is produced. It must not be shared across messages or workers.
//
// The first Evaluate call stores its outcome here; later calls on the same
// Evaluation return the stored verdict without a second DNS lookup.
type Evaluation struct {
	// SourceIP is the connecting relay's IP. Diagnostic only; DMARC itself
	// does not use it.
	SourceIP string

	// EnvelopeFromDomain is the RFC5321.MailFrom domain.
	EnvelopeFromDomain string

	// EnvelopeToDomain is the recipient domain.
	EnvelopeToDomain string

	// HeaderFromDomain is the RFC5322.From domain, the identity DMARC
	// authenticates. Required.
	HeaderFromDomain string

	// SPF holds the outcomes of prior SPF checks. Only mfrom-scope passes
	// feed alignment.
	SPF []SPFResult

	// DKIM holds the outcomes of prior DKIM verifications, one per
	// signature.
	DKIM []DKIMResult

	done    bool
	verdict Verdict
	err     error
}

// Verdict is the outcome of a DMARC evaluation.
type Verdict struct {
	// Result is the DMARC result. Messages can fail and still be
	// delivered; see Disposition.
	Result Status

	// Disposition is the policy-requested handling. It is PolicyNone
	// unless Result is StatusFail; only a failing result carries an
	// enforcement signal.
	Disposition Policy

	// SPFAligned indicates SPF passed with an aligned identifier.
	SPFAligned bool

	// DKIMAligned indicates at least one DKIM signature passed with an
	// aligned identifier.
	DKIMAligned bool

	// Domain is the domain the policy record was found at. May be the
	// organizational domain rather than the From domain.
	Domain string

	// Record is the parsed policy record, nil when none was found.
	Record *Record

	// RecordRaw is the record's raw TXT string, for logging and scoring
	// rule integration.
	RecordRaw string

	// Authentic indicates the policy lookup was DNSSEC-validated.
	Authentic bool

	// SampledOut indicates a quarantine/reject disposition was downgraded
	// to none by pct= sampling.
	SampledOut bool

	// Err holds detail about a non-enforcing outcome: no record,
	// malformed record, DNS failure, missing From domain.
	Err error
}

// EvaluatorConfig configures an Evaluator.
type EvaluatorConfig struct {
	// Resolver performs the policy TXT lookups. Required. Share one
	// resolver across workers; wrap it in dns.DedupResolver to coalesce
	// concurrent lookups for the same domain.
	Resolver dns.Resolver

	// OrgDomain derives organizational domains. Default
	// OrganizationalDomain.
	OrgDomain OrgDomainFunc

	// Sample decides whether a record with pct < 100 applies its policy
	// to this message. It receives the record's percentage and reports
	// whether to enforce. Default: enforce for pct percent of messages,
	// pseudo-randomly. Inject a deterministic function in tests.
	Sample func(pct int) bool

	// FailClosed makes DNS failures produce StatusTemperror instead of
	// the default permissive StatusNone. Either way the error is
	// returned, so callers can retry once and then fail open.
	FailClosed bool
}

// Evaluator evaluates DMARC for messages. Safe for concurrent use; all
// mutable state lives in the per-message Evaluation.
type Evaluator struct {
	resolver   dns.Resolver
	orgDomain  OrgDomainFunc
	sample     func(pct int) bool
	failClosed bool
}

// NewEvaluator creates an Evaluator, filling in defaults for zero fields.
// Panics if config.Resolver is nil.
func NewEvaluator(config EvaluatorConfig) *Evaluator {
	if config.Resolver == nil {
		panic("dmarc: resolver is required")
	}
	if config.OrgDomain == nil {
		config.OrgDomain = OrganizationalDomain
	}
	if config.Sample == nil {
		config.Sample = func(pct int) bool {
			return rand.Intn(100) < pct
		}
	}
	return &Evaluator{
		resolver:   config.Resolver,
		orgDomain:  config.OrgDomain,
		sample:     config.Sample,
		failClosed: config.FailClosed,
	}
}

// Evaluate produces the DMARC verdict for the message described by eval.
//
// The evaluation is a pure function of its inputs aside from the one policy
// DNS lookup. The outcome is memoized on eval: a second call returns the
// identical verdict without querying DNS again.
//
// Non-enforcing outcomes (no From domain, no published policy, DNS trouble)
// come back as verdicts with Result StatusNone rather than bare errors, so a
// scoring pipeline never loses its other checks to a DMARC hiccup. The error
// return distinguishes the cases a caller may want to act on: ErrNoFromDomain,
// and ErrDNS wraps for temporary failures (retry, then fail open).
func (e *Evaluator) Evaluate(ctx context.Context, eval *Evaluation) (Verdict, error) {
	if eval.done {
		return eval.verdict, eval.err
	}

	verdict, err := e.evaluate(ctx, eval)
	eval.done = true
	eval.verdict = verdict
	eval.err = err
	return verdict, err
}

func (e *Evaluator) evaluate(ctx context.Context, eval *Evaluation) (Verdict, error) {
	from := normalizeDomain(eval.HeaderFromDomain)
	if from == "" {
		// Hard precondition: nothing to authenticate. Non-enforcing.
		return Verdict{Result: StatusNone, Disposition: PolicyNone, Err: ErrNoFromDomain}, ErrNoFromDomain
	}

	status, recordDomain, record, txt, authentic, err := lookup(ctx, e.resolver, from, e.orgDomain)
	if record == nil {
		verdict := Verdict{
			Result:      StatusNone,
			Disposition: PolicyNone,
			Domain:      recordDomain,
			RecordRaw:   txt,
			Authentic:   authentic,
			Err:         err,
		}
		if status == StatusTemperror {
			if e.failClosed {
				verdict.Result = StatusTemperror
			}
			return verdict, err
		}
		// No policy published (or unusable record): no enforcement.
		return verdict, nil
	}

	verdict := Verdict{
		Domain:    recordDomain,
		Record:    record,
		RecordRaw: txt,
		Authentic: authentic,
	}

	for _, d := range eval.DKIM {
		if d.Result != AuthPass {
			continue
		}
		if alignedWith(d.Domain, from, record.ADKIM, e.orgDomain) {
			verdict.DKIMAligned = true
			break
		}
	}

	for _, s := range eval.SPF {
		// Only a MailFrom pass counts; the HELO identity and weaker
		// outcomes (softfail, neutral, ...) never feed alignment.
		if s.Scope != ScopeMailFrom || s.Result != AuthPass {
			continue
		}
		if alignedWith(s.Domain, from, record.ASPF, e.orgDomain) {
			verdict.SPFAligned = true
			break
		}
	}

	// DMARC passes if either mechanism passes with alignment.
	if verdict.SPFAligned || verdict.DKIMAligned {
		verdict.Result = StatusPass
		verdict.Disposition = PolicyNone
		return verdict, nil
	}

	verdict.Result = StatusFail
	disposition := record.EffectivePolicy(from != recordDomain)

	if record.Percentage < 100 && (disposition == PolicyQuarantine || disposition == PolicyReject) {
		if !e.sample(record.Percentage) {
			disposition = PolicyNone
			verdict.SampledOut = true
		}
	}

	verdict.Disposition = disposition
	return verdict, nil
}

// ExtractFromDomain extracts the domain from a From header value. The header
// must contain a single parseable address; DMARC evaluates one From domain.
func ExtractFromDomain(fromHeader string) (string, error) {
	if fromHeader == "" {
		return "", ErrNoFromHeader
	}

	addrs, err := mail.ParseAddressList(fromHeader)
	if err != nil {
		return "", ErrInvalidFromHeader
	}
	if len(addrs) == 0 {
		return "", ErrNoFromHeader
	}
	if len(addrs) > 1 {
		// Multiple From addresses make the evaluated identity
		// ambiguous.
		return "", ErrInvalidFromHeader
	}

	addr := addrs[0].Address
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "", ErrInvalidFromHeader
	}
	return strings.ToLower(addr[at+1:]), nil
}

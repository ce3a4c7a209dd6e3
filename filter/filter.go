// Package filter integrates DMARC evaluation into a message-filtering
// pipeline.
//
// A Checker is created once and shared across workers. Each inbound message
// gets its own Message, created with NewMessage and owned by exactly one
// worker. Check runs the DMARC evaluation and returns an Outcome: the
// verdict, a rule symbol for scoring engines, and an Authentication-Results
// header value.
//
// The original three policy-specific checks (reject, quarantine, none) are a
// single Check call here; callers switch on Outcome.Symbol or on
// Outcome.Verdict.Disposition.
package filter

import (
	"context"
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"

	"github.com/anaaviles/spamassassin-dmarc/dmarc"
	"github.com/anaaviles/spamassassin-dmarc/dns"
)

// Rule symbols, one per distinct DMARC outcome a scoring engine may want to
// weight.
const (
	SymbolPass           = "DMARC_PASS"
	SymbolNone           = "DMARC_NONE"
	SymbolTempError      = "DMARC_TEMPERROR"
	SymbolFailNone       = "DMARC_FAIL_NONE"
	SymbolFailQuarantine = "DMARC_FAIL_QUARANTINE"
	SymbolFailReject     = "DMARC_FAIL_REJECT"
)

// Config configures a Checker.
type Config struct {
	// Resolver performs policy lookups. Required. Wrap it in
	// dns.DedupResolver when the Checker is shared across workers.
	Resolver dns.Resolver

	// Logger for per-message evaluation records. Default slog.Default().
	Logger *slog.Logger

	// Hostname is the authserv-id for Authentication-Results headers.
	// Default: os.Hostname, falling back to "localhost".
	Hostname string

	// HonorPercentage honors the pct= tag of policy records: only the
	// published fraction of failing messages keeps its quarantine/reject
	// disposition. When false, dispositions always apply.
	HonorPercentage bool

	// Sample overrides the pct= sampling decision, for tests. Only
	// consulted when HonorPercentage is set.
	Sample func(pct int) bool

	// FailClosed reports DNS trouble as temperror instead of the default
	// permissive none.
	FailClosed bool

	// OrgDomain overrides organizational-domain derivation.
	OrgDomain dmarc.OrgDomainFunc
}

// Checker evaluates DMARC for messages in a filtering pipeline. Safe for
// concurrent use.
type Checker struct {
	evaluator *dmarc.Evaluator
	logger    *slog.Logger
	hostname  string
}

// New creates a Checker. Panics if config.Resolver is nil.
func New(config Config) *Checker {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Hostname == "" {
		if name, err := os.Hostname(); err == nil && name != "" {
			config.Hostname = name
		} else {
			config.Hostname = "localhost"
		}
	}

	sample := config.Sample
	if !config.HonorPercentage {
		// Ignore pct entirely: every failing message keeps its
		// published disposition.
		sample = func(int) bool { return true }
	}

	return &Checker{
		evaluator: dmarc.NewEvaluator(dmarc.EvaluatorConfig{
			Resolver:   config.Resolver,
			OrgDomain:  config.OrgDomain,
			Sample:     sample,
			FailClosed: config.FailClosed,
		}),
		logger:   config.Logger,
		hostname: config.Hostname,
	}
}

// Message is the per-message working set. One worker owns it; it is not safe
// for concurrent use. The DMARC verdict is computed once per Message no
// matter how many rules consult it.
type Message struct {
	// ID correlates this message's log records across a concurrent
	// pipeline.
	ID ulid.ULID

	// SourceIP is the connecting relay's IP, for logging.
	SourceIP string

	// EnvelopeFromDomain is the RFC5321.MailFrom domain.
	EnvelopeFromDomain string

	// EnvelopeToDomain is the recipient domain.
	EnvelopeToDomain string

	// FromHeader is the raw RFC5322.From header value.
	FromHeader string

	// SPF holds prior SPF outcomes.
	SPF []dmarc.SPFResult

	// DKIM holds prior DKIM outcomes.
	DKIM []dmarc.DKIMResult

	eval *dmarc.Evaluation
}

// NewMessage creates a Message with a fresh correlation ID. Fill in the
// exported fields before calling Check.
func NewMessage() *Message {
	return &Message{ID: ulid.Make()}
}

// Outcome is the result of a DMARC check, ready for scoring-rule and
// header-stamping integration.
type Outcome struct {
	// Verdict is the DMARC evaluation verdict.
	Verdict dmarc.Verdict

	// Symbol is the scoring rule symbol for this outcome, one of the
	// Symbol constants.
	Symbol string

	// AuthResults is the Authentication-Results header value recording
	// this outcome.
	AuthResults string
}

// Check evaluates DMARC for msg. Repeated calls on the same Message reuse
// the first verdict and issue no further DNS queries.
//
// A missing or unparseable From header produces a non-enforcing outcome and
// an error; evaluation trouble never suppresses the rest of a scoring
// pipeline. Temporary DNS failures are likewise returned alongside a
// non-enforcing outcome so the caller can retry once, then fail open.
func (c *Checker) Check(ctx context.Context, msg *Message) (Outcome, error) {
	if msg.eval == nil {
		fromDomain, err := dmarc.ExtractFromDomain(msg.FromHeader)
		if err != nil {
			verdict := dmarc.Verdict{
				Result:      dmarc.StatusNone,
				Disposition: dmarc.PolicyNone,
				Err:         err,
			}
			c.logger.Warn("dmarc check skipped",
				slog.String("msg_id", msg.ID.String()),
				slog.String("source_ip", msg.SourceIP),
				slog.Any("error", err),
			)
			return c.outcome(verdict, ""), err
		}

		msg.eval = &dmarc.Evaluation{
			SourceIP:           msg.SourceIP,
			EnvelopeFromDomain: msg.EnvelopeFromDomain,
			EnvelopeToDomain:   msg.EnvelopeToDomain,
			HeaderFromDomain:   fromDomain,
			SPF:                msg.SPF,
			DKIM:               msg.DKIM,
		}
	}

	verdict, err := c.evaluator.Evaluate(ctx, msg.eval)

	c.logger.Info("dmarc evaluated",
		slog.String("msg_id", msg.ID.String()),
		slog.String("source_ip", msg.SourceIP),
		slog.String("from_domain", msg.eval.HeaderFromDomain),
		slog.String("policy_domain", verdict.Domain),
		slog.String("result", string(verdict.Result)),
		slog.String("disposition", string(verdict.Disposition)),
		slog.Bool("spf_aligned", verdict.SPFAligned),
		slog.Bool("dkim_aligned", verdict.DKIMAligned),
		slog.Bool("sampled_out", verdict.SampledOut),
		slog.Any("error", verdict.Err),
	)

	return c.outcome(verdict, msg.eval.HeaderFromDomain), err
}

func (c *Checker) outcome(verdict dmarc.Verdict, fromDomain string) Outcome {
	return Outcome{
		Verdict:     verdict,
		Symbol:      Symbol(verdict),
		AuthResults: c.authResults(verdict, fromDomain),
	}
}

// Symbol maps a verdict onto its scoring rule symbol.
func Symbol(verdict dmarc.Verdict) string {
	switch verdict.Result {
	case dmarc.StatusPass:
		return SymbolPass
	case dmarc.StatusTemperror:
		return SymbolTempError
	case dmarc.StatusFail:
		switch verdict.Disposition {
		case dmarc.PolicyReject:
			return SymbolFailReject
		case dmarc.PolicyQuarantine:
			return SymbolFailQuarantine
		default:
			return SymbolFailNone
		}
	default:
		return SymbolNone
	}
}

package dmarc

import (
	"errors"
)

// Lookup and evaluation errors.
var (
	// ErrNoRecord indicates no DMARC DNS record was found.
	ErrNoRecord = errors.New("dmarc: no DMARC DNS record found")

	// ErrMultipleRecords indicates multiple DMARC DNS records were found.
	// Per RFC 7489 Section 6.6.3 the domain is treated as not implementing
	// DMARC.
	ErrMultipleRecords = errors.New("dmarc: multiple DMARC DNS records found")

	// ErrSyntax indicates a malformed DMARC record. Treated like an absent
	// record, never as an implicit reject.
	ErrSyntax = errors.New("dmarc: malformed DMARC DNS record")

	// ErrDNS indicates a temporary DNS failure during policy lookup.
	ErrDNS = errors.New("dmarc: DNS lookup error")

	// ErrNoFromDomain indicates the evaluation has no From-header domain.
	// DMARC cannot be evaluated without one.
	ErrNoFromDomain = errors.New("dmarc: no From header domain")

	// ErrNoFromHeader indicates the message has no From header.
	ErrNoFromHeader = errors.New("dmarc: no From header in message")

	// ErrInvalidFromHeader indicates the From header could not be parsed.
	ErrInvalidFromHeader = errors.New("dmarc: invalid From header")
)

// AuthResult is the outcome vocabulary shared by SPF and DKIM as consumed by
// DMARC, per RFC 8601.
type AuthResult string

const (
	AuthPass      AuthResult = "pass"
	AuthFail      AuthResult = "fail"
	AuthNone      AuthResult = "none"
	AuthNeutral   AuthResult = "neutral"
	AuthSoftfail  AuthResult = "softfail"
	AuthTemperror AuthResult = "temperror"
	AuthPermerror AuthResult = "permerror"
)

// SPFScope identifies which SPF identity was checked.
type SPFScope string

const (
	// ScopeMailFrom is the RFC5321.MailFrom identity. Only this scope
	// participates in DMARC alignment.
	ScopeMailFrom SPFScope = "mfrom"

	// ScopeHelo is the HELO/EHLO identity.
	ScopeHelo SPFScope = "helo"
)

// SPFResult is the outcome of a prior SPF check, one per checked identity.
type SPFResult struct {
	// Scope is the identity that was checked.
	Scope SPFScope

	// Domain is the domain that was checked.
	Domain string

	// Result is the SPF outcome.
	Result AuthResult
}

// DKIMResult is the outcome of a prior DKIM signature verification. A message
// can carry any number of signatures, so any number of results.
type DKIMResult struct {
	// Domain is the signing domain, the d= tag of the signature.
	Domain string

	// Result is the verification outcome.
	Result AuthResult
}

// Status is the DMARC evaluation result, for use in an Authentication-Results
// header per RFC 8601.
type Status string

const (
	// StatusNone indicates no DMARC policy was found, or the evaluation
	// could not be performed. Never an enforcement signal.
	StatusNone Status = "none"

	// StatusPass indicates SPF and/or DKIM passed with identifier alignment.
	StatusPass Status = "pass"

	// StatusFail indicates no mechanism passed with an aligned identifier.
	StatusFail Status = "fail"

	// StatusTemperror indicates a temporary error, typically a DNS lookup
	// failure. A later attempt may reach a conclusion.
	StatusTemperror Status = "temperror"

	// StatusPermerror indicates a permanent error such as an unparseable
	// From header.
	StatusPermerror Status = "permerror"
)

// Policy is a requested handling of DMARC-failing mail. It is both the value
// space of the p= and sp= record tags and the verdict's disposition.
type Policy string

const (
	// PolicyEmpty marks an unset sp= tag.
	PolicyEmpty Policy = ""

	// PolicyNone requests no specific action for failing messages.
	PolicyNone Policy = "none"

	// PolicyQuarantine requests failing messages be treated as suspicious.
	PolicyQuarantine Policy = "quarantine"

	// PolicyReject requests failing messages be rejected.
	PolicyReject Policy = "reject"
)

// Align is the alignment mode for identifier comparison.
type Align string

const (
	// AlignRelaxed requires matching organizational domains. The default.
	AlignRelaxed Align = "r"

	// AlignStrict requires an exact domain match.
	AlignStrict Align = "s"
)

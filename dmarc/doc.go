// Package dmarc evaluates Domain-based Message Authentication, Reporting,
// and Conformance (DMARC) policy outcomes per RFC 7489.
//
// DMARC authenticates the address in the "From" message header, the one users
// look at to identify the sender. It compares the From domain against the
// domains validated by SPF and DKIM, under the alignment rules of the DMARC
// policy the domain owner published in DNS as a TXT record at
// "_dmarc.<domain>".
//
// This package provides:
//   - DMARC record parsing with the full standard tag set
//   - Policy lookup with organizational-domain fallback
//   - Identifier alignment checks (strict and relaxed)
//   - Policy evaluation producing a verdict with a disposition
//
// SPF evaluation and DKIM signature verification are not performed here.
// Their outcomes are inputs, supplied as SPFResult and DKIMResult values by
// whatever performed those checks earlier in the pipeline.
//
// # Basic usage
//
// Looking up a policy:
//
//	resolver := dns.NewNetResolver(dns.ResolverConfig{DNSSEC: true})
//	status, domain, record, txt, authentic, err := dmarc.Lookup(ctx, resolver, "mail.example.com")
//
// Evaluating a message:
//
//	evaluator := dmarc.NewEvaluator(dmarc.EvaluatorConfig{Resolver: resolver})
//	eval := &dmarc.Evaluation{
//		HeaderFromDomain: "example.com",
//		SPF: []dmarc.SPFResult{{Scope: dmarc.ScopeMailFrom, Domain: "example.com", Result: dmarc.AuthPass}},
//		DKIM: dkimResults,
//	}
//	verdict, err := evaluator.Evaluate(ctx, eval)
//	switch verdict.Disposition {
//	case dmarc.PolicyReject:
//		// ...
//	}
//
// # Alignment
//
// DMARC requires alignment between the From-header domain and the domains
// authenticated by SPF and DKIM:
//
//   - SPF alignment: the RFC5321.MailFrom domain must match the RFC5322.From
//     domain. The HELO identity never feeds alignment.
//
//   - DKIM alignment: at least one passing DKIM signature must have a d=
//     domain matching the RFC5322.From domain.
//
// Alignment is "strict" (exact match) or "relaxed" (organizational domains
// match). Relaxed is the default for both.
//
// # Organizational domain
//
// The organizational domain is determined with the Public Suffix List:
// example.com for sub.example.com, example.co.uk for sub.example.co.uk.
//
// # References
//
//   - RFC 7489: Domain-based Message Authentication, Reporting, and Conformance
//   - RFC 8601: Message Header Field for Indicating Message Authentication Status
package dmarc

// Command dmarc-check evaluates DMARC for a synthetic message against live
// DNS, given SPF and DKIM outcomes observed elsewhere.
//
// Example:
//
//	dmarc-check -from example.com \
//	    -spf pass -spf-domain mail.example.com \
//	    -dkim example.com=pass -dkim other.example=fail
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anaaviles/spamassassin-dmarc/dmarc"
	"github.com/anaaviles/spamassassin-dmarc/dns"
)

// listFlag collects repeated string flags.
type listFlag []string

func (f *listFlag) String() string { return strings.Join(*f, ",") }

func (f *listFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var (
		from        = flag.String("from", "", "From-header domain to evaluate (required)")
		spfResult   = flag.String("spf", "", "SPF result: pass, fail, softfail, neutral, none, temperror, permerror")
		spfDomain   = flag.String("spf-domain", "", "domain checked by SPF (MAIL FROM); defaults to -from")
		timeout     = flag.Duration("timeout", 10*time.Second, "DNS lookup timeout")
		dnssec      = flag.Bool("dnssec", false, "request DNSSEC validation (needs validating resolvers)")
		failClosed  = flag.Bool("fail-closed", false, "report DNS trouble as temperror instead of none")
		honorPct    = flag.Bool("honor-pct", false, "honor the record's pct= sampling")
		jsonOut     = flag.Bool("json", false, "print the verdict as JSON")
		verbose     = flag.Bool("v", false, "verbose logging")
		dkimResults, nameservers listFlag
	)
	flag.Var(&dkimResults, "dkim", "DKIM outcome as domain=result, repeatable")
	flag.Var(&nameservers, "nameserver", "DNS server as host:port, repeatable; default from resolv.conf")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *from == "" {
		fmt.Fprintln(os.Stderr, "dmarc-check: -from is required")
		flag.Usage()
		os.Exit(2)
	}

	eval := &dmarc.Evaluation{HeaderFromDomain: *from}

	if *spfResult != "" {
		domain := *spfDomain
		if domain == "" {
			domain = *from
		}
		eval.SPF = []dmarc.SPFResult{{
			Scope:  dmarc.ScopeMailFrom,
			Domain: domain,
			Result: dmarc.AuthResult(strings.ToLower(*spfResult)),
		}}
	}

	for _, arg := range dkimResults {
		domain, result, ok := strings.Cut(arg, "=")
		if !ok || domain == "" || result == "" {
			fmt.Fprintf(os.Stderr, "dmarc-check: bad -dkim value %q, want domain=result\n", arg)
			os.Exit(2)
		}
		eval.DKIM = append(eval.DKIM, dmarc.DKIMResult{
			Domain: domain,
			Result: dmarc.AuthResult(strings.ToLower(result)),
		})
	}

	resolver := dns.NewDedupResolver(dns.NewNetResolver(dns.ResolverConfig{
		Nameservers: nameservers,
		DNSSEC:      *dnssec,
		Timeout:     *timeout,
	}))

	sample := func(int) bool { return true }
	if *honorPct {
		sample = nil
	}
	evaluator := dmarc.NewEvaluator(dmarc.EvaluatorConfig{
		Resolver:   resolver,
		Sample:     sample,
		FailClosed: *failClosed,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	verdict, err := evaluator.Evaluate(ctx, eval)
	if err != nil {
		logger.Warn("evaluation incomplete", slog.Any("error", err))
	}

	if *jsonOut {
		printJSON(verdict)
	} else {
		printText(verdict)
	}

	switch verdict.Result {
	case dmarc.StatusFail:
		os.Exit(1)
	case dmarc.StatusTemperror, dmarc.StatusPermerror:
		os.Exit(2)
	}
}

func printText(v dmarc.Verdict) {
	fmt.Printf("result:       %s\n", v.Result)
	fmt.Printf("disposition:  %s\n", v.Disposition)
	fmt.Printf("spf aligned:  %t\n", v.SPFAligned)
	fmt.Printf("dkim aligned: %t\n", v.DKIMAligned)
	if v.Domain != "" {
		fmt.Printf("policy domain: %s\n", v.Domain)
	}
	if v.RecordRaw != "" {
		fmt.Printf("record:       %s\n", v.RecordRaw)
	}
	if v.Authentic {
		fmt.Println("dnssec:       authentic")
	}
	if v.SampledOut {
		fmt.Println("note:         disposition downgraded by pct sampling")
	}
	if v.Err != nil {
		fmt.Printf("detail:       %v\n", v.Err)
	}
}

func printJSON(v dmarc.Verdict) {
	out := struct {
		Result      dmarc.Status `json:"result"`
		Disposition dmarc.Policy `json:"disposition"`
		SPFAligned  bool         `json:"spf_aligned"`
		DKIMAligned bool         `json:"dkim_aligned"`
		Domain      string       `json:"policy_domain,omitempty"`
		Record      string       `json:"record,omitempty"`
		Authentic   bool         `json:"dnssec_authentic"`
		SampledOut  bool         `json:"sampled_out"`
		Detail      string       `json:"detail,omitempty"`
	}{
		Result:      v.Result,
		Disposition: v.Disposition,
		SPFAligned:  v.SPFAligned,
		DKIMAligned: v.DKIMAligned,
		Domain:      v.Domain,
		Record:      v.RecordRaw,
		Authentic:   v.Authentic,
		SampledOut:  v.SampledOut,
	}
	if v.Err != nil {
		out.Detail = v.Err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "dmarc-check: %v\n", err)
		os.Exit(2)
	}
}

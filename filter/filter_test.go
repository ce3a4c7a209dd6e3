package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/anaaviles/spamassassin-dmarc/dmarc"
	"github.com/anaaviles/spamassassin-dmarc/dns"
)

func testChecker(t *testing.T, txt map[string][]string, config Config) (*Checker, *dns.MockResolver) {
	t.Helper()
	resolver := &dns.MockResolver{TXT: txt}
	config.Resolver = resolver
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Hostname == "" {
		config.Hostname = "mx.filter.test"
	}
	return New(config), resolver
}

func TestCheckSymbols(t *testing.T) {
	check := func(record string, spf []dmarc.SPFResult, wantSymbol string) {
		t.Helper()
		txt := map[string][]string{}
		if record != "" {
			txt["_dmarc.example.com."] = []string{record}
		}
		checker, _ := testChecker(t, txt, Config{})

		msg := NewMessage()
		msg.FromHeader = "sender@example.com"
		msg.SPF = spf

		outcome, err := checker.Check(context.Background(), msg)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if outcome.Symbol != wantSymbol {
			t.Errorf("record %q: symbol %q, want %q", record, outcome.Symbol, wantSymbol)
		}
	}

	aligned := []dmarc.SPFResult{{Scope: dmarc.ScopeMailFrom, Domain: "example.com", Result: dmarc.AuthPass}}
	var none []dmarc.SPFResult

	check("", aligned, SymbolNone)
	check("v=DMARC1; p=none", aligned, SymbolPass)
	check("v=DMARC1; p=none", none, SymbolFailNone)
	check("v=DMARC1; p=quarantine", none, SymbolFailQuarantine)
	check("v=DMARC1; p=reject", none, SymbolFailReject)
}

func TestCheckTempErrorSymbol(t *testing.T) {
	resolver := &dns.MockResolver{Fail: []string{"_dmarc.example.com."}}
	checker := New(Config{
		Resolver:   resolver,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Hostname:   "mx.filter.test",
		FailClosed: true,
	})

	msg := NewMessage()
	msg.FromHeader = "sender@example.com"

	outcome, err := checker.Check(context.Background(), msg)
	if !errors.Is(err, dmarc.ErrDNS) {
		t.Fatalf("got err %v, want ErrDNS", err)
	}
	if outcome.Symbol != SymbolTempError {
		t.Errorf("symbol %q, want %q", outcome.Symbol, SymbolTempError)
	}
	if outcome.Verdict.Disposition != dmarc.PolicyNone {
		t.Errorf("temperror outcome carries disposition %v", outcome.Verdict.Disposition)
	}
}

func TestCheckMissingFromHeader(t *testing.T) {
	checker, resolver := testChecker(t, map[string][]string{
		"_dmarc.example.com.": {"v=DMARC1; p=reject"},
	}, Config{})

	msg := NewMessage()
	// No FromHeader set.

	outcome, err := checker.Check(context.Background(), msg)
	if !errors.Is(err, dmarc.ErrNoFromHeader) {
		t.Fatalf("got err %v, want ErrNoFromHeader", err)
	}
	// Non-enforcing, and no DNS traffic for an unevaluable message.
	if outcome.Symbol != SymbolNone || outcome.Verdict.Disposition != dmarc.PolicyNone {
		t.Errorf("got symbol %q disposition %v, want non-enforcing", outcome.Symbol, outcome.Verdict.Disposition)
	}
	if resolver.TotalQueries() != 0 {
		t.Errorf("resolver queried %d times, want 0", resolver.TotalQueries())
	}
}

func TestCheckMemoized(t *testing.T) {
	checker, resolver := testChecker(t, map[string][]string{
		"_dmarc.example.com.": {"v=DMARC1; p=reject"},
	}, Config{})

	msg := NewMessage()
	msg.FromHeader = "sender@example.com"

	ctx := context.Background()
	first, err1 := checker.Check(ctx, msg)
	second, err2 := checker.Check(ctx, msg)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v, %v", err1, err2)
	}
	if first.Symbol != second.Symbol || first.AuthResults != second.AuthResults {
		t.Errorf("outcomes differ: %+v vs %+v", first, second)
	}
	if n := resolver.Queries("_dmarc.example.com"); n != 1 {
		t.Errorf("policy queried %d times, want 1", n)
	}
}

func TestCheckHonorPercentage(t *testing.T) {
	txt := map[string][]string{
		"_dmarc.example.com.": {"v=DMARC1; p=reject; pct=0"},
	}

	// pct honored with a sampler forced to downgrade.
	checker, _ := testChecker(t, txt, Config{
		HonorPercentage: true,
		Sample:          func(pct int) bool { return false },
	})
	msg := NewMessage()
	msg.FromHeader = "sender@example.com"
	outcome, err := checker.Check(context.Background(), msg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if outcome.Symbol != SymbolFailNone || !outcome.Verdict.SampledOut {
		t.Errorf("sampled: got %q (%+v), want %q", outcome.Symbol, outcome.Verdict, SymbolFailNone)
	}

	// pct ignored by default: disposition always applies.
	checker, _ = testChecker(t, txt, Config{})
	msg = NewMessage()
	msg.FromHeader = "sender@example.com"
	outcome, err = checker.Check(context.Background(), msg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if outcome.Symbol != SymbolFailReject {
		t.Errorf("unsampled: got %q, want %q", outcome.Symbol, SymbolFailReject)
	}
}

func TestCheckAuthResults(t *testing.T) {
	checker, _ := testChecker(t, map[string][]string{
		"_dmarc.example.com.": {"v=DMARC1; p=none"},
	}, Config{})

	msg := NewMessage()
	msg.FromHeader = "sender@example.com"
	msg.SPF = []dmarc.SPFResult{{Scope: dmarc.ScopeMailFrom, Domain: "example.com", Result: dmarc.AuthPass}}

	outcome, err := checker.Check(context.Background(), msg)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	for _, want := range []string{"mx.filter.test", "dmarc=pass", "header.from=example.com"} {
		if !strings.Contains(outcome.AuthResults, want) {
			t.Errorf("AuthResults %q missing %q", outcome.AuthResults, want)
		}
	}
}

func TestNewMessageIDsUnique(t *testing.T) {
	a, b := NewMessage(), NewMessage()
	if a.ID == b.ID {
		t.Error("consecutive messages share a ULID")
	}
}

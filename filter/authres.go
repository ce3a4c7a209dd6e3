package filter

import (
	"github.com/emersion/go-msgauth/authres"

	"github.com/anaaviles/spamassassin-dmarc/dmarc"
)

// authResults renders an Authentication-Results header value (RFC 8601) for
// the verdict, e.g.
//
//	mx.example.org; dmarc=pass header.from=example.com
func (c *Checker) authResults(verdict dmarc.Verdict, fromDomain string) string {
	result := &authres.DMARCResult{
		Value: resultValue(verdict.Result),
		From:  fromDomain,
	}
	if verdict.Err != nil {
		result.Reason = verdict.Err.Error()
	} else if verdict.SampledOut {
		result.Reason = "policy sampled out by pct"
	}

	return authres.Format(c.hostname, []authres.Result{result})
}

func resultValue(status dmarc.Status) authres.ResultValue {
	switch status {
	case dmarc.StatusPass:
		return authres.ResultPass
	case dmarc.StatusFail:
		return authres.ResultFail
	case dmarc.StatusTemperror:
		return authres.ResultTempError
	case dmarc.StatusPermerror:
		return authres.ResultPermError
	default:
		return authres.ResultNone
	}
}

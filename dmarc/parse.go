package dmarc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseRecord parses a DMARC TXT record string.
//
// Tag names and most values are case-insensitive and come back lower-cased.
// Unknown tags are ignored per RFC 7489. Duplicate tags are rejected.
//
// Returns the parsed record, whether the string is a DMARC record at all
// (first tag "v" with the exact-case value "DMARC1"), and any parse error.
// TXT strings that are not DMARC records are reported with isDMARC=false and
// no error, so callers can skip unrelated TXT records at the same name.
func ParseRecord(s string) (record *Record, isDMARC bool, err error) {
	tags, err := splitTags(s)
	if err != nil {
		return nil, false, err
	}
	if len(tags) == 0 || strings.ToLower(tags[0].name) != "v" {
		return nil, false, nil
	}
	// Unrelated TXT records (e.g. an SPF string) are skipped, not errors.
	if !strings.HasPrefix(strings.ToLower(tags[0].value), "dmarc1") {
		return nil, false, nil
	}
	// "DMARC1" is the one case-sensitive value in the record.
	if tags[0].value != "DMARC1" {
		return nil, false, fmt.Errorf("%w: version must be DMARC1, got %q", ErrSyntax, tags[0].value)
	}

	r := DefaultRecord
	r.Version = tags[0].value

	var pSeen, pValid, spValid bool
	spValid = true

	seen := map[string]bool{"v": true}
	for _, t := range tags[1:] {
		name := strings.ToLower(t.name)
		if seen[name] {
			// Duplicates are not explicitly forbidden by the RFC, but
			// only invite confusion.
			return nil, true, fmt.Errorf("%w: duplicate tag %q", ErrSyntax, t.name)
		}
		seen[name] = true

		value := strings.ToLower(t.value)

		switch name {
		case "p":
			pSeen = true
			switch Policy(value) {
			case PolicyNone, PolicyQuarantine, PolicyReject:
				r.Policy = Policy(value)
				pValid = true
			}

		case "sp":
			switch Policy(value) {
			case PolicyNone, PolicyQuarantine, PolicyReject:
				r.SubdomainPolicy = Policy(value)
			default:
				spValid = false
			}

		case "adkim":
			if value != "r" && value != "s" {
				return nil, true, fmt.Errorf("%w: bad adkim value %q", ErrSyntax, t.value)
			}
			r.ADKIM = Align(value)

		case "aspf":
			if value != "r" && value != "s" {
				return nil, true, fmt.Errorf("%w: bad aspf value %q", ErrSyntax, t.value)
			}
			r.ASPF = Align(value)

		case "pct":
			n, err := parseInt(value)
			if err != nil || n > 100 {
				return nil, true, fmt.Errorf("%w: bad pct value %q", ErrSyntax, t.value)
			}
			r.Percentage = n

		case "ri":
			n, err := parseInt(value)
			if err != nil {
				return nil, true, fmt.Errorf("%w: bad ri value %q", ErrSyntax, t.value)
			}
			r.ReportingInterval = n

		case "rua":
			uris, err := parseURIList(t.value)
			if err != nil {
				return nil, true, fmt.Errorf("%w: bad rua value %q: %v", ErrSyntax, t.value, err)
			}
			r.AggregateAddresses = uris

		case "ruf":
			uris, err := parseURIList(t.value)
			if err != nil {
				return nil, true, fmt.Errorf("%w: bad ruf value %q: %v", ErrSyntax, t.value, err)
			}
			r.FailureAddresses = uris

		case "fo":
			opts, err := parseFailureOptions(value)
			if err != nil {
				return nil, true, fmt.Errorf("%w: bad fo value %q", ErrSyntax, t.value)
			}
			r.FailureOptions = opts

		case "rf":
			formats, err := parseKeywordList(value)
			if err != nil {
				return nil, true, fmt.Errorf("%w: bad rf value %q", ErrSyntax, t.value)
			}
			r.ReportingFormat = formats

		default:
			// Unknown tag, ignore.
		}
	}

	// RFC 7489 Section 6.6.3: a record without a valid p, or with an
	// invalid sp, is still usable as p=none if it requests aggregate
	// reports. Otherwise it is ignored.
	if !pSeen || !pValid || !spValid {
		if len(r.AggregateAddresses) == 0 {
			return nil, true, fmt.Errorf("%w: invalid or missing policy and no aggregate reporting address", ErrSyntax)
		}
		r.Policy = PolicyNone
		r.SubdomainPolicy = PolicyEmpty
	}

	return &r, true, nil
}

type tag struct {
	name  string
	value string
}

// splitTags splits a record into name/value pairs on ";". A trailing
// semicolon is allowed, empty tags elsewhere are not.
func splitTags(s string) ([]tag, error) {
	parts := strings.Split(s, ";")
	tags := make([]tag, 0, len(parts))

	for i, part := range parts {
		part = strings.Trim(part, " \t")
		if part == "" {
			if i == len(parts)-1 {
				continue
			}
			return nil, fmt.Errorf("%w: empty tag", ErrSyntax)
		}

		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: tag %q has no value", ErrSyntax, part)
		}
		name = strings.Trim(name, " \t")
		value = strings.Trim(value, " \t")
		if name == "" || value == "" {
			return nil, fmt.Errorf("%w: malformed tag %q", ErrSyntax, part)
		}
		tags = append(tags, tag{name, value})
	}

	return tags, nil
}

// parseInt parses a non-negative decimal without sign or leftovers.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("not a number")
		}
	}
	return strconv.Atoi(s)
}

// parseURIList parses a comma-separated list of report URIs, each optionally
// suffixed with "!maxsize" and a size unit.
func parseURIList(s string) ([]ReportURI, error) {
	var uris []ReportURI
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(part, " \t")
		if part == "" {
			return nil, fmt.Errorf("empty URI")
		}
		uri, err := parseReportURI(part)
		if err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func parseReportURI(s string) (ReportURI, error) {
	addr, size, hasSize := strings.Cut(s, "!")

	u, err := url.Parse(addr)
	if err != nil {
		return ReportURI{}, fmt.Errorf("parsing uri %q: %v", addr, err)
	}
	if u.Scheme == "" {
		return ReportURI{}, fmt.Errorf("missing scheme in uri %q", addr)
	}

	uri := ReportURI{Address: addr}
	if hasSize {
		if size == "" {
			return ReportURI{}, fmt.Errorf("empty max size in uri %q", s)
		}
		switch size[len(size)-1] {
		case 'k', 'K', 'm', 'M', 'g', 'G', 't', 'T':
			uri.Unit = strings.ToLower(size[len(size)-1:])
			size = size[:len(size)-1]
		}
		uri.MaxSize, err = strconv.ParseUint(size, 10, 64)
		if err != nil {
			return ReportURI{}, fmt.Errorf("parsing max size in uri %q: %v", s, err)
		}
	}
	return uri, nil
}

// parseFailureOptions parses a colon-separated fo= value.
func parseFailureOptions(s string) ([]string, error) {
	var opts []string
	for _, opt := range strings.Split(s, ":") {
		opt = strings.Trim(opt, " \t")
		switch opt {
		case "0", "1", "d", "s":
			opts = append(opts, opt)
		default:
			return nil, fmt.Errorf("bad option %q", opt)
		}
	}
	return opts, nil
}

// parseKeywordList parses a colon-separated list of SMTP-style keywords:
// alphanumerics and inner dashes.
func parseKeywordList(s string) ([]string, error) {
	var words []string
	for _, w := range strings.Split(s, ":") {
		w = strings.Trim(w, " \t")
		if w == "" || !validKeyword(w) {
			return nil, fmt.Errorf("bad keyword %q", w)
		}
		words = append(words, w)
	}
	return words, nil
}

func validKeyword(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(s)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

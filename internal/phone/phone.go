package phone

import (
	"fmt"
	"strings"
)

const minDigits = 10

// Result describes a normalized channel identifier. Country and LocalFormat
// are display-only; when classification fails the number is still usable as
// a customer key.
type Result struct {
	CanonicalPhone string
	IsValid        bool
	IsGroupChat    bool
	Country        string
	LocalFormat    string
}

// Normalize parses a raw gateway identifier ("<digits>@<suffix>") into a
// digits-only canonical phone. Group identifiers are rejected outright:
// group traffic never maps onto a single customer.
func Normalize(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}
	}

	identifier := raw
	if at := strings.Index(raw, "@"); at >= 0 {
		suffix := raw[at+1:]
		identifier = raw[:at]
		if isGroupSuffix(suffix) {
			return Result{IsGroupChat: true}
		}
	}

	digits := stripNonDigits(identifier)
	if len(digits) < minDigits {
		return Result{CanonicalPhone: digits}
	}

	result := Result{
		CanonicalPhone: digits,
		IsValid:        true,
	}
	classify(&result)
	return result
}

func isGroupSuffix(suffix string) bool {
	suffix = strings.ToLower(suffix)
	return suffix == "g.us" || strings.HasPrefix(suffix, "broadcast")
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// classify fills Country and LocalFormat from digit-count and prefix
// heuristics. Brazilian numbers dominate the traffic: 55 + two-digit area
// code + 9-digit mobile (13 total) or 8-digit landline (12 total).
func classify(r *Result) {
	digits := r.CanonicalPhone

	if strings.HasPrefix(digits, "55") {
		rest := digits[2:]
		switch len(rest) {
		case 11:
			area, number := rest[:2], rest[2:]
			if number[0] == '9' {
				r.Country = "BR"
				r.LocalFormat = fmt.Sprintf("(%s) %s-%s", area, number[:5], number[5:])
				return
			}
		case 10:
			area, number := rest[:2], rest[2:]
			r.Country = "BR"
			r.LocalFormat = fmt.Sprintf("(%s) %s-%s", area, number[:4], number[4:])
			return
		}
	}

	if strings.HasPrefix(digits, "1") && len(digits) == 11 {
		r.Country = "US"
		r.LocalFormat = fmt.Sprintf("(%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}
}

// Package qtype normalizes DNS query type labels reported by the telemetry backend.
//
// The backend reports well-known types by mnemonic and anything it could not
// name as "UNKNOWN" or "UNKNOWN (<code>)". Codes that miekg/dns knows are
// mapped back to their mnemonic so the dashboard shows HTTPS rather than
// "UNKNOWN (65)".
package qtype

import (
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Unknown is the label for queries whose type could not be determined.
const Unknown = "UNKNOWN"

// Normalize returns the display label for a backend query type.
func Normalize(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return Unknown
	}
	if code, ok := Code(s); ok {
		if name, known := dns.TypeToString[code]; known {
			return name
		}
		if strings.HasPrefix(s, Unknown) {
			return Unknown + " (" + strconv.Itoa(int(code)) + ")"
		}
		return "TYPE" + strconv.Itoa(int(code))
	}
	return s
}

// Code extracts the numeric RR type from labels like "TYPE65", "UNKNOWN (65)" or "A".
func Code(label string) (uint16, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(s, "TYPE"):
		return parseCode(s[len("TYPE"):])
	case strings.HasPrefix(s, Unknown):
		rest := strings.TrimSpace(s[len(Unknown):])
		rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		if rest == "" {
			return 0, false
		}
		return parseCode(rest)
	}
	if t, ok := dns.StringToType[s]; ok {
		return t, true
	}
	return 0, false
}

// IsUnknown reports whether label still has no mnemonic after normalization.
func IsUnknown(label string) bool {
	n := Normalize(label)
	return strings.HasPrefix(n, Unknown) || strings.HasPrefix(n, "TYPE")
}

func parseCode(s string) (uint16, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

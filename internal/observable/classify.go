package observable

import (
	"net/netip"
	"regexp"
	"strings"
)

var hexPattern = regexp.MustCompile(`^[A-Fa-f0-9]+$`)

// Classify infers the kind of value. The checks run in a fixed order (IP,
// then hash, then domain) and the first match wins; a 32 character hex token
// is a hash even though it would also pass a loose hostname check.
// The boolean is false when no rule matches.
func Classify(value string) (Kind, bool) {
	if value == "" {
		return "", false
	}
	switch {
	case isIP(value):
		return KindIP, true
	case isHash(value):
		return KindHash, true
	case isDomain(value):
		return KindDomain, true
	}
	return "", false
}

// ParseIP parses a bare address literal. Zoned IPv6 addresses are rejected.
func ParseIP(value string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(value)
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, false
	}
	return addr, true
}

func isIP(value string) bool {
	_, ok := ParseIP(value)
	return ok
}

func isHash(value string) bool {
	if _, ok := hashAlgorithms[len(value)]; !ok {
		return false
	}
	return hexPattern.MatchString(value)
}

// isDomain accepts one or more labels followed by an alphabetic TLD.
func isDomain(value string) bool {
	labels := strings.Split(value, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 || len(tld) > 63 {
		return false
	}
	for i := 0; i < len(tld); i++ {
		if !isLetter(tld[i]) {
			return false
		}
	}
	for _, label := range labels[:len(labels)-1] {
		if !isHostLabel(label) {
			return false
		}
	}
	return true
}

func isHostLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !isLetter(c) && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

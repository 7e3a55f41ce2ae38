// Package observable classifies raw indicator strings and decides whether a
// remote record already represents them. Everything here is pure: no I/O,
// no retained state.
package observable

import (
	"fmt"
	"strings"
)

// Kind is the closed set of observable kinds the gateway understands.
type Kind string

const (
	KindIP     Kind = "ip"
	KindDomain Kind = "domain"
	KindHash   Kind = "hash"
)

// Record type tags used by the remote store.
const (
	TypeIPv4     = "IPv4-Addr"
	TypeIPv6     = "IPv6-Addr"
	TypeDomain   = "Domain-Name"
	TypeArtifact = "Artifact"
	TypeFile     = "StixFile"
)

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindIP, KindDomain, KindHash}
}

// ParseKind validates a caller-supplied kind name, case-insensitively.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case KindIP, KindDomain, KindHash:
		return k, nil
	}
	return "", fmt.Errorf("unknown observable kind %q: must be one of ip, domain, hash", raw)
}

// RecordTypes returns the remote record types a kind is searched under, in
// the order they are sent upstream.
func (k Kind) RecordTypes() []string {
	switch k {
	case KindIP:
		return []string{TypeIPv4, TypeIPv6}
	case KindDomain:
		return []string{TypeDomain}
	case KindHash:
		return []string{TypeArtifact, TypeFile}
	}
	return nil
}

func (k Kind) String() string { return string(k) }

package observable

import "strings"

// Hash is one {algorithm, hash} entry attached to a file-like record.
type Hash struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
}

// Candidate is the part of a remote record the gateway inspects. Nil string
// fields were absent upstream.
type Candidate struct {
	ID              string  `json:"id"`
	EntityType      string  `json:"entity_type"`
	ObservableValue *string `json:"observable_value,omitempty"`
	Value           *string `json:"value,omitempty"`
	Name            *string `json:"name,omitempty"`
	Hashes          []Hash  `json:"hashes,omitempty"`
}

// DisplayValue returns the first non-empty of observable_value, value and
// name, falling back to the supplied original input.
func (c Candidate) DisplayValue(fallback string) string {
	for _, v := range []*string{c.ObservableValue, c.Value, c.Name} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return fallback
}

// FindMatch returns the first candidate whose value fields or hash entries
// equal target, ignoring case. Candidates are scanned in the order given.
func FindMatch(candidates []Candidate, target string) (Candidate, bool) {
	target = strings.ToLower(target)
	for _, c := range candidates {
		if c.matches(target) {
			return c, true
		}
	}
	return Candidate{}, false
}

func (c Candidate) matches(target string) bool {
	for _, v := range []*string{c.ObservableValue, c.Value, c.Name} {
		if v != nil && strings.ToLower(*v) == target {
			return true
		}
	}
	for _, h := range c.Hashes {
		if strings.ToLower(h.Hash) == target {
			return true
		}
	}
	return false
}

package observable

import (
	"errors"
	"fmt"
)

// Algorithm names a hash algorithm as the remote store spells it.
type Algorithm string

const (
	MD5    Algorithm = "MD5"
	SHA1   Algorithm = "SHA-1"
	SHA256 Algorithm = "SHA-256"
	SHA512 Algorithm = "SHA-512"
)

// ErrInvalidHashLength is returned when a hash length maps to no algorithm.
var ErrInvalidHashLength = errors.New("invalid hash length")

var hashAlgorithms = map[int]Algorithm{
	32:  MD5,
	40:  SHA1,
	64:  SHA256,
	128: SHA512,
}

// ResolveAlgorithm maps a hash to its algorithm by length alone. It does not
// check that the value is hex.
func ResolveAlgorithm(hash string) (Algorithm, error) {
	algo, ok := hashAlgorithms[len(hash)]
	if !ok {
		return "", fmt.Errorf("%w %d: expected one of 32, 40, 64, 128", ErrInvalidHashLength, len(hash))
	}
	return algo, nil
}

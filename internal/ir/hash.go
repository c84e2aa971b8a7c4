package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashing. The version suffix allows
// the hashing scheme to evolve without colliding with previously computed
// hashes.
const (
	// DomainAlphaNode separates the LHS compiler's alpha-node sharing keys
	// (fact-type + constraint canonical form, §4.1 "Sharing").
	DomainAlphaNode = "rules/alpha/v1"

	// DomainBinding is the domain for binding-set hashes. The conformance
	// harness compares golden traces as canonical JSON and does not hash
	// with it.
	DomainBinding = "rules/harness/binding/v1"
)

// HashCanonical computes a SHA-256 hash of v's RFC 8785 canonical JSON
// encoding, domain-separated so that hashes computed for different purposes
// (e.g. an alpha-node sharing key vs. a harness binding hash) never collide
// even if the underlying values happen to marshal identically.
//
// Format: SHA256(domain + 0x00 + canonical(v))
// The null byte separates domain from data unambiguously since domain
// strings never contain NUL.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashCanonical: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MustHashCanonical is like HashCanonical but panics on error. Use only in
// tests or when v is known to be canonically marshalable.
func MustHashCanonical(domain string, v any) string {
	hash, err := HashCanonical(domain, v)
	if err != nil {
		panic(err)
	}
	return hash
}

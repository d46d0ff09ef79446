package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for algorithm migration.
const (
	DomainTask = "omniwire/task/v1"
	DomainPlan = "omniwire/plan/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Identity returns the content-addressed id of obj under domain.
func Identity(domain string, obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("identity %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustIdentity is like Identity but panics on error.
// Use only when obj is built from known-good values.
func MustIdentity(domain string, obj Object) string {
	id, err := Identity(domain, obj)
	if err != nil {
		panic(err)
	}
	return id
}

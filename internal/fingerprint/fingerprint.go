// Package fingerprint derives content fingerprints and deterministic job
// identifiers. Two submissions of byte-identical content under the same
// platform always resolve to the same job ID, regardless of submission
// order or wall-clock time.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// JobIDLength is the number of hex characters kept from the derived digest.
const JobIDLength = 32

// Hash computes the SHA-256 digest of data as a 64-character hex string.
// The empty byte sequence is valid input and yields a valid fingerprint.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes the SHA-256 digest of the UTF-8 bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}

// JobID derives a deterministic job identifier from a platform partition
// key and a content fingerprint.
func JobID(platform, hash string) string {
	return HashString(platform + ":" + hash)[:JobIDLength]
}

package sink

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeChecksum returns the digest of a part file's bytes in the
// "sha256:<hex>" form recorded in table manifests.
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyChecksum reports whether data matches a manifest checksum.
func VerifyChecksum(data []byte, expected string) bool {
	return ComputeChecksum(data) == expected
}

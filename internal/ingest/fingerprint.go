package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprint hashes an opaque credential string (an HTTP bearer token
// or an MQTT topic a broker ACL already restricts to one device) into
// the stable value the Device Registry compares on every Resolve call.
// Hashing rather than storing raw credentials follows the teacher's
// GenerateRefreshToken convention of never persisting a secret in
// comparable plaintext.
func fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

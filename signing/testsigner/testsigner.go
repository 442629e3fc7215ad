// Package testsigner implements a fake signing backend with a simple
// hash-based signature format, for use in tests that need a real Signer/
// Verifier without real key material. Grounded on
// original_source/lib/src/test_signing_backend.rs's TestSigningBackend,
// substituting BLAKE3 (github.com/zeebo/blake3, already the id hash used
// throughout the store) for that file's blake2b.
package testsigner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/antgroup/zit/signing"
)

const prefix = "--- ZIT-TEST-SIGNATURE ---\nKEY: "

// Backend is a deterministic, keyless signing backend: its "signature" is a
// hash of the key plus the data, readable only by itself. Never use outside
// tests.
type Backend struct {
	// Key, if set, is embedded in the signature and returned from Verify.
	Key string
}

// New returns a testsigner backend with no key set.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return "test" }

func (b *Backend) CanRead(signature []byte) bool {
	return bytes.HasPrefix(signature, []byte(prefix))
}

func (b *Backend) body(key string, data []byte) string {
	sum := blake3.Sum256(append([]byte(key), data...))
	return fmt.Sprintf("%s%s\n%x\n", prefix, key, sum)
}

// Sign returns the deterministic signature for data under b.Key.
func (b *Backend) Sign(data []byte) ([]byte, error) {
	return []byte(b.body(b.Key, data)), nil
}

// Verify recomputes the expected signature for the key embedded in
// signature and compares it byte-for-byte.
func (b *Backend) Verify(data, signature []byte) (signing.Verification, error) {
	if !b.CanRead(signature) {
		return signing.Verification{Status: signing.SigStatusInvalid}, signing.ErrSigning("verify", fmt.Errorf("not a test signature"))
	}
	rest := strings.TrimPrefix(string(signature), prefix)
	key, _, _ := strings.Cut(rest, "\n")

	want := b.body(key, data)
	display := "test-display"
	if want == string(signature) {
		return signing.Verification{Status: signing.SigStatusGood, Key: key, Display: display}, nil
	}
	return signing.Verification{Status: signing.SigStatusBad, Key: key, Display: display}, nil
}

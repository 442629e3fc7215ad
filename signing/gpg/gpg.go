// Package gpg implements the GPG signing backend over
// github.com/ProtonMail/go-crypto/openpgp, grounded on the teacher's own
// commit-signing call (buildCommitSignature in pkg/zeta/tree.go), which
// signs with openpgp.ArmoredDetachSign against a single *openpgp.Entity.
package gpg

import (
	"bytes"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/antgroup/zit/signing"
)

const armorHeader = "-----BEGIN PGP SIGNATURE-----"

// Backend signs with signKey and verifies against any entity in keyring.
// Either may be nil if this instance is only ever used for the other
// direction.
type Backend struct {
	signKey *openpgp.Entity
	keyring openpgp.EntityList
}

// NewSigner returns a Backend that signs with key and cannot verify.
func NewSigner(key *openpgp.Entity) *Backend {
	return &Backend{signKey: key}
}

// NewVerifier returns a Backend that verifies against keyring and cannot
// sign.
func NewVerifier(keyring openpgp.EntityList) *Backend {
	return &Backend{keyring: keyring}
}

func (b *Backend) Name() string { return "gpg" }

func (b *Backend) CanRead(signature []byte) bool {
	return bytes.Contains(signature, []byte(armorHeader))
}

// Sign produces an armored detached signature over data, the same call
// shape as buildCommitSignature.
func (b *Backend) Sign(data []byte) ([]byte, error) {
	if b.signKey == nil {
		return nil, signing.ErrSigning("sign", fmt.Errorf("gpg: no signing key configured"))
	}
	var out bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&out, b.signKey, bytes.NewReader(data), nil); err != nil {
		return nil, signing.ErrSigning("sign", err)
	}
	return out.Bytes(), nil
}

// Verify checks an armored detached signature against every entity in the
// configured keyring, reporting the first match.
func (b *Backend) Verify(data, signature []byte) (signing.Verification, error) {
	if !b.CanRead(signature) {
		return signing.Verification{Status: signing.SigStatusInvalid}, signing.ErrSigning("verify", fmt.Errorf("gpg: not an armored signature"))
	}
	signer, err := openpgp.CheckArmoredDetachedSignature(b.keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		return signing.Verification{Status: signing.SigStatusUnknown}, nil
	}
	key := ""
	display := "unknown"
	if signer != nil {
		key = signer.PrimaryKey.KeyIdString()
		if id := signer.PrimaryIdentity(); id != nil {
			display = id.Name
		}
	}
	return signing.Verification{Status: signing.SigStatusGood, Key: key, Display: display}, nil
}

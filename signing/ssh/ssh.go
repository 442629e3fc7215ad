// Package ssh implements the SSH signing backend over
// golang.org/x/crypto/ssh, the same transport-crypto package the teacher
// already depends on for its SSH remote (pkg/transport/ssh/auth.go) and
// known-hosts handling, reused here for commit signing rather than
// transport authentication.
package ssh

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ssh"

	zitsigning "github.com/antgroup/zit/signing"
)

const sigPrefix = "zit-ssh-sig-v1:"

// Backend signs with signer and/or verifies against one or more trusted
// public keys (the contents of an allowed-signers file, one key per
// authorized principal).
type Backend struct {
	signer  ssh.Signer
	trusted []ssh.PublicKey
}

// NewSigner parses a PEM-encoded private key (optionally passphrase
// protected) and returns a Backend that signs with it.
func NewSigner(pemBytes []byte, passphrase []byte) (*Backend, error) {
	var signer ssh.Signer
	var err error
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, zitsigning.ErrSigning("sign", err)
	}
	return &Backend{signer: signer}, nil
}

// NewVerifier returns a Backend that verifies signatures against the given
// authorized public keys (e.g. parsed from an allowed-signers file via
// ssh.ParseAuthorizedKey, one call per line).
func NewVerifier(trusted []ssh.PublicKey) *Backend {
	return &Backend{trusted: trusted}
}

func (b *Backend) Name() string { return "ssh" }

func (b *Backend) CanRead(signature []byte) bool {
	return len(signature) > len(sigPrefix) && string(signature[:len(sigPrefix)]) == sigPrefix
}

// Sign produces a detached SSH signature over data itself; the returned
// blob is the wire-encoded signature behind a format prefix that CanRead
// recognizes.
func (b *Backend) Sign(data []byte) ([]byte, error) {
	if b.signer == nil {
		return nil, zitsigning.ErrSigning("sign", fmt.Errorf("ssh: no signing key configured"))
	}
	sig, err := b.signer.Sign(rand.Reader, data)
	if err != nil {
		return nil, zitsigning.ErrSigning("sign", err)
	}
	wire := ssh.Marshal(sig)
	out := make([]byte, 0, len(sigPrefix)+len(wire))
	out = append(out, sigPrefix...)
	out = append(out, wire...)
	return out, nil
}

// Verify checks a detached SSH signature against every trusted public key.
func (b *Backend) Verify(data, signature []byte) (zitsigning.Verification, error) {
	if !b.CanRead(signature) {
		return zitsigning.Verification{Status: zitsigning.SigStatusInvalid}, zitsigning.ErrSigning("verify", fmt.Errorf("ssh: not an ssh signature"))
	}
	var sig ssh.Signature
	if err := ssh.Unmarshal(signature[len(sigPrefix):], &sig); err != nil {
		return zitsigning.Verification{Status: zitsigning.SigStatusInvalid}, zitsigning.ErrSigning("verify", err)
	}
	for _, key := range b.trusted {
		if key.Verify(data, &sig) == nil {
			return zitsigning.Verification{
				Status:  zitsigning.SigStatusGood,
				Key:     ssh.FingerprintSHA256(key),
				Display: key.Type(),
			}, nil
		}
	}
	return zitsigning.Verification{Status: zitsigning.SigStatusUnknown}, nil
}

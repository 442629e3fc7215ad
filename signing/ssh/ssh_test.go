package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateKeyPair(t *testing.T) (ssh.Signer, ssh.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}
	publicKey, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("NewPublicKey: %v", err)
	}
	return signer, publicKey
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, publicKey := generateKeyPair(t)
	signBackend := &Backend{signer: signer}
	verifyBackend := NewVerifier([]ssh.PublicKey{publicKey})

	data := []byte("commit body")
	sig, err := signBackend.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !verifyBackend.CanRead(sig) {
		t.Fatal("CanRead(own signature) = false, want true")
	}

	v, err := verifyBackend.Verify(data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Status.String() != "good" {
		t.Errorf("Status = %v, want good", v.Status)
	}
}

func TestVerifyRejectsUntrustedKey(t *testing.T) {
	signer, _ := generateKeyPair(t)
	_, otherPublicKey := generateKeyPair(t)
	signBackend := &Backend{signer: signer}
	verifyBackend := NewVerifier([]ssh.PublicKey{otherPublicKey})

	data := []byte("commit body")
	sig, err := signBackend.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v, err := verifyBackend.Verify(data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Status.String() != "unknown" {
		t.Errorf("Status = %v, want unknown", v.Status)
	}
}

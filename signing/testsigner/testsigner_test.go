package testsigner

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	b := New()
	b.Key = "alice"
	data := []byte("commit body")

	sig, err := b.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !b.CanRead(sig) {
		t.Fatal("CanRead(own signature) = false, want true")
	}

	v, err := b.Verify(data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Key != "alice" {
		t.Errorf("Key = %q, want %q", v.Key, "alice")
	}
	if v.Status.String() != "good" {
		t.Errorf("Status = %v, want good", v.Status)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	b := New()
	sig, err := b.Sign([]byte("original"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v, err := b.Verify([]byte("tampered"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Status.String() != "bad" {
		t.Errorf("Status = %v, want bad", v.Status)
	}
}

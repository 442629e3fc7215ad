package signing

import (
	"errors"
	"testing"
)

func TestShouldSign(t *testing.T) {
	cases := []struct {
		mode              Mode
		predecessorSigned bool
		want              bool
	}{
		{ModeForce, false, true},
		{ModeForce, true, true},
		{ModeDrop, true, false},
		{ModeDrop, false, false},
		{ModeKeep, true, true},
		{ModeKeep, false, false},
	}
	for _, c := range cases {
		if got := ShouldSign(c.mode, c.predecessorSigned); got != c.want {
			t.Errorf("ShouldSign(%v, %v) = %v, want %v", c.mode, c.predecessorSigned, got, c.want)
		}
	}
}

func TestIsSigned(t *testing.T) {
	if IsSigned(nil) {
		t.Error("IsSigned(nil) = true, want false")
	}
	if !IsSigned([]byte("x")) {
		t.Error("IsSigned(non-empty) = false, want true")
	}
}

func TestErrSigning(t *testing.T) {
	err := ErrSigning("sign", errors.New("boom"))
	if !IsSigning(err) {
		t.Error("IsSigning(ErrSigning(...)) = false, want true")
	}
	if IsSigning(nil) {
		t.Error("IsSigning(nil) = true, want false")
	}
}

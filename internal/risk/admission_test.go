package risk

import "testing"

func TestAdmissionCap(t *testing.T) {
	a := NewAdmission(2)
	if !a.TryAcquire() || !a.TryAcquire() {
		t.Fatalf("expected two slots")
	}
	if a.TryAcquire() {
		t.Fatalf("third acquire must fail at cap 2")
	}
	a.Release()
	if !a.TryAcquire() {
		t.Fatalf("released slot must be reusable")
	}
	if a.Held() != 2 {
		t.Fatalf("expected 2 held, got %d", a.Held())
	}
}

func TestAdmissionZeroCap(t *testing.T) {
	a := NewAdmission(0)
	if a.TryAcquire() {
		t.Fatalf("zero cap must admit nothing")
	}
}

func TestReleaseClampsAtZero(t *testing.T) {
	a := NewAdmission(1)
	a.Release()
	a.Release()
	if a.Held() != 0 {
		t.Fatalf("held must clamp at zero, got %d", a.Held())
	}
	if !a.TryAcquire() {
		t.Fatalf("clamped counter must still admit up to cap")
	}
	if a.TryAcquire() {
		t.Fatalf("double release must not unlock extra capacity")
	}
}

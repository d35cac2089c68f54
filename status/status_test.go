package status

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw    string
		want   Status
		wantOK bool
	}{
		{"new", New, true},
		{"IN_REVIEW", InReview, true},
		{" approved ", Approved, true},
		{"por_dispersar", PorDispersar, true},
		{"pending", New, true},
		{"solicitud", New, true},
		{"Solicitud", New, true},
		{"Aprobado", Approved, true},
		{"Por Dispersar", PorDispersar, true},
		{"garbage", New, false},
		{"", New, false},
	}

	for _, tc := range cases {
		got, ok := Normalize(tc.raw)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestShared(t *testing.T) {
	shared := []Status{PorDispersar, Completed, Expired, Cancelled, Rejected}
	for _, s := range shared {
		if !s.Shared() {
			t.Errorf("expected %q to be shared", s)
		}
	}
	for _, s := range []Status{New, InReview, Approved} {
		if s.Shared() {
			t.Errorf("expected %q not to be shared", s)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{Completed, Expired, Cancelled} {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	// Rejected can be restored and por_dispersar can be dispersed.
	for _, s := range []Status{Rejected, PorDispersar, New, InReview, Approved} {
		if s.Terminal() {
			t.Errorf("expected %q not to be terminal", s)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := PorDispersar.Label(); got != "Por Dispersar" {
		t.Errorf("unexpected label %q", got)
	}
	if got := Status("weird").Label(); got != "weird" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

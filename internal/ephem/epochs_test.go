package ephem

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func collect(kind Kind, tc, period float64, w Window) []float64 {
	return slices.Collect(Epochs(kind, tc, period, w))
}

func TestEpochsScenario(t *testing.T) {
	w := Window{Start: 2456000.0, End: 2456010.0}

	tests := []struct {
		kind Kind
		want []float64
	}{
		// The epoch at exactly Start is outside the open window.
		{Transit, []float64{2456003.5, 2456007.0}},
		{Eclipse, []float64{2456001.75, 2456005.25, 2456008.75}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got := collect(tt.kind, 2456000.0, 3.5, w)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Epochs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEpochsOpenInterval(t *testing.T) {
	// Transits land exactly on both window bounds.
	w := Window{Start: 2456001.0, End: 2456005.0}
	got := collect(Transit, 2456000.0, 1.0, w)
	want := []float64{2456002.0, 2456003.0, 2456004.0}
	if !slices.Equal(got, want) {
		t.Errorf("Epochs = %v, want %v", got, want)
	}
	for _, v := range got {
		if v <= w.Start || v >= w.End {
			t.Errorf("%v outside (%v, %v)", v, w.Start, w.End)
		}
	}
}

func TestEpochsFormula(t *testing.T) {
	tc, period := 2455500.123, 2.7182
	w := Window{Start: 2457000.0, End: 2457100.0}

	for _, kind := range []Kind{Transit, Eclipse} {
		got := collect(kind, tc, period, w)
		if len(got) == 0 {
			t.Fatalf("%s: no epochs", kind)
		}
		for i, v := range got {
			n := (v-tc)/period - kind.phase()
			if math.Abs(n-math.Round(n)) > 1e-6 || n < 0 {
				t.Errorf("%s[%d] = %v is not tc + P*(n+phase) for integer n >= 0 (n=%v)", kind, i, v, n)
			}
			if i > 0 && v <= got[i-1] {
				t.Errorf("%s not ascending at %d", kind, i)
			}
		}
		// Nothing missing at either end.
		if first := got[0]; first-period > w.Start {
			t.Errorf("%s: epoch before %v missing", kind, first)
		}
		if last := got[len(got)-1]; last+period < w.End {
			t.Errorf("%s: epoch after %v missing", kind, last)
		}
	}
}

func TestEpochsNoNegativeIndex(t *testing.T) {
	// Window entirely before Tc: only n >= 0 epochs are generated.
	got := collect(Transit, 2456100.0, 3.0, Window{Start: 2456000.0, End: 2456050.0})
	if len(got) != 0 {
		t.Errorf("Epochs = %v, want none", got)
	}
}

func TestEpochsRestartable(t *testing.T) {
	seq := Epochs(Transit, 2456000.0, 0.9, Window{Start: 2456000.0, End: 2456020.0})
	a := slices.Collect(seq)
	b := slices.Collect(seq)
	if !slices.Equal(a, b) {
		t.Errorf("second pass differs: %v vs %v", a, b)
	}

	// Early break must not leave anything behind either.
	for range seq {
		break
	}
	if c := slices.Collect(seq); !slices.Equal(a, c) {
		t.Errorf("pass after break differs")
	}
}

func TestEpochsUnusable(t *testing.T) {
	w := Window{Start: 2456000.0, End: 2456010.0}
	tests := []struct {
		name       string
		tc, period float64
	}{
		{"zero period", 2456000.0, 0},
		{"negative period", 2456000.0, -1},
		{"unset epoch", 0, 3.5},
		{"nan period", 2456000.0, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collect(Transit, tt.tc, tt.period, w); len(got) != 0 {
				t.Errorf("Epochs = %v, want none", got)
			}
			if n := EpochCount(tt.tc, tt.period, w); n != 0 && !math.IsNaN(tt.period) {
				t.Errorf("EpochCount = %d, want 0", n)
			}
		})
	}
}

func TestEpochCount(t *testing.T) {
	w := Window{Start: 2456000.0, End: 2456010.0}
	if n := EpochCount(2456000.0, 3.5, w); n < 3 || n > 8 {
		t.Errorf("EpochCount = %d, want a few epochs", n)
	}
	if n := EpochCount(2456000.0, 1e-12, w); n != math.MaxInt {
		t.Errorf("EpochCount for tiny period = %d, want MaxInt", n)
	}
}

func TestWindowValidate(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		ok   bool
	}{
		{"valid", Window{2456000, 2456001}, true},
		{"empty", Window{2456000, 2456000}, false},
		{"reversed", Window{2456001, 2456000}, false},
		{"nan", Window{math.NaN(), 2456000}, false},
		{"inf", Window{2456000, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("err = %v, want ErrInvalidWindow", err)
			}
		})
	}
}

func TestKindText(t *testing.T) {
	b, err := Eclipse.MarshalText()
	if err != nil || string(b) != "eclipse" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
}

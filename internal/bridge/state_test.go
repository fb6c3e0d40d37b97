package bridge

import (
	"testing"
	"time"
)

func TestKelvinToMiredClamped(t *testing.T) {
	tests := []struct {
		name     string
		kelvin   int
		expected uint16
	}{
		{name: "below_range", kelvin: 500, expected: 500},
		{name: "range_min", kelvin: 2000, expected: 500},
		{name: "midpoint", kelvin: 4250, expected: 327},
		{name: "range_max", kelvin: 6500, expected: 153},
		{name: "above_range", kelvin: 10000, expected: 153},
		{name: "negative", kelvin: -100, expected: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KelvinToMired(tt.kelvin, 2000, 6500)
			if got != tt.expected {
				t.Errorf("KelvinToMired(%d) = %d, want %d", tt.kelvin, got, tt.expected)
			}
		})
	}
}

func TestKelvinToMiredMonotonic(t *testing.T) {
	prev := KelvinToMired(1000, 2000, 6500)
	for kelvin := 1100; kelvin <= 8000; kelvin += 100 {
		got := KelvinToMired(kelvin, 2000, 6500)
		if got > prev {
			t.Fatalf("KelvinToMired(%d) = %d, increased from %d", kelvin, got, prev)
		}
		if got < MiredMin || got > MiredMax {
			t.Fatalf("KelvinToMired(%d) = %d, outside [%d, %d]", kelvin, got, MiredMin, MiredMax)
		}
		prev = got
	}
}

func TestKelvinToMiredDegenerateRange(t *testing.T) {
	if got := KelvinToMired(4000, 5000, 5000); got != MiredMax {
		t.Errorf("degenerate range = %d, want %d", got, MiredMax)
	}
}

func TestRGBToState(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
	}{
		{name: "red", r: 255},
		{name: "green", g: 255},
		{name: "blue", b: 255},
		{name: "white", r: 255, g: 255, b: 255},
		{name: "black"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := RGBToState(tt.r, tt.g, tt.b)
			if len(st.XY) != 2 {
				t.Fatalf("expected xy pair, got %v", st.XY)
			}
			for _, v := range st.XY {
				if v < 0 || v > 1 {
					t.Errorf("xy component %f outside [0,1]", v)
				}
			}
			if st.On == nil || !*st.On {
				t.Error("expected power on")
			}
			if st.Bri == nil || *st.Bri < 1 || *st.Bri > BriMax {
				t.Errorf("brightness outside [1,%d]: %v", BriMax, st.Bri)
			}
		})
	}
}

func TestRGBToStateRedDominantX(t *testing.T) {
	red := RGBToState(255, 0, 0)
	blue := RGBToState(0, 0, 255)
	if red.XY[0] <= blue.XY[0] {
		t.Errorf("red x %f should exceed blue x %f", red.XY[0], blue.XY[0])
	}
}

func TestStateToHuegoTransition(t *testing.T) {
	instant := time.Duration(0)
	short := 400 * time.Millisecond

	tests := []struct {
		name       string
		transition *time.Duration
		expected   uint16
	}{
		{name: "default_omitted", transition: nil, expected: 0},
		{name: "instant_becomes_one_tick", transition: &instant, expected: 1},
		{name: "short", transition: &short, expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := State{Transition: tt.transition}.toHuego()
			if hs.TransitionTime != tt.expected {
				t.Errorf("TransitionTime = %d, want %d", hs.TransitionTime, tt.expected)
			}
		})
	}
}

func TestStateToHuegoPowerDefault(t *testing.T) {
	off := false
	if hs := (State{}).toHuego(); !hs.On {
		t.Error("nil power should serialize as on")
	}
	if hs := (State{On: &off}).toHuego(); hs.On {
		t.Error("explicit off should serialize as off")
	}
}

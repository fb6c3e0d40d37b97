package effects

import (
	"testing"

	"github.com/dokzlo13/blinkd/internal/config"
)

func testResolver() *Resolver {
	return NewResolver(config.DefaultSchemes(), 2000, 6500)
}

func TestResolveSingleHex(t *testing.T) {
	pair, ok := testResolver().Resolve("#ff0000")
	if !ok {
		t.Fatal("hex code should resolve")
	}

	// One code is duplicated for both fixtures
	for i, st := range pair {
		if len(st.XY) != 2 {
			t.Fatalf("side %d: expected xy color", i)
		}
		if st.XY[0] != pair[0].XY[0] || st.XY[1] != pair[0].XY[1] {
			t.Fatalf("side %d differs from side 0", i)
		}
		if st.XY[0] < 0.6 {
			t.Fatalf("side %d: x %f too low for red", i, st.XY[0])
		}
	}
}

func TestResolveTwoHexInOrder(t *testing.T) {
	pair, ok := testResolver().Resolve("#ff0000 and #00ff00")
	if !ok {
		t.Fatal("hex codes should resolve")
	}

	// Red has a far higher x than green
	if pair[0].XY[0] <= pair[1].XY[0] {
		t.Fatalf("left x %f should exceed right x %f", pair[0].XY[0], pair[1].XY[0])
	}
}

func TestResolveSchemeFragmentsInConfiguredOrder(t *testing.T) {
	pair, ok := testResolver().Resolve("I love rainbow tonight")
	if !ok {
		t.Fatal("rainbow should resolve")
	}
	if pair[0].Effect != "colorloop" || pair[1].Effect != "colorloop" {
		t.Fatalf("expected colorloop on both sides, got %q / %q", pair[0].Effect, pair[1].Effect)
	}
}

func TestResolveSingleSettingSchemesByPosition(t *testing.T) {
	pair, ok := testResolver().Resolve("I want red then blue")
	if !ok {
		t.Fatal("keywords should resolve")
	}

	// red first in the message goes to the left fixture
	if pair[0].XY[0] < 0.6 {
		t.Fatalf("left should be red, x = %f", pair[0].XY[0])
	}
	if pair[1].XY[0] > 0.2 {
		t.Fatalf("right should be blue, x = %f", pair[1].XY[0])
	}
}

func TestResolveMultiSettingSchemeWins(t *testing.T) {
	// red appears first, but fire carries two settings and outranks it
	pair, ok := testResolver().Resolve("red or maybe fire")
	if !ok {
		t.Fatal("keywords should resolve")
	}
	if pair[0].XY[0] != 0.6 || pair[1].XY[0] != 0.55 {
		t.Fatalf("expected the fire fragments, got %v / %v", pair[0].XY, pair[1].XY)
	}
}

func TestResolveSingleKeywordDuplicated(t *testing.T) {
	pair, ok := testResolver().Resolve("blue please")
	if !ok {
		t.Fatal("blue should resolve")
	}
	if pair[0].XY[0] != pair[1].XY[0] || pair[0].XY[1] != pair[1].XY[1] {
		t.Fatal("single match should be duplicated for both fixtures")
	}
}

func TestResolveNothing(t *testing.T) {
	if _, ok := testResolver().Resolve("gibberish"); ok {
		t.Fatal("gibberish must not resolve")
	}
}

func TestResolveNoSubstringMatches(t *testing.T) {
	// "redo" must not match the "red" keyword
	if _, ok := testResolver().Resolve("redo the thing"); ok {
		t.Fatal("keyword must only match whole tokens")
	}
}

func TestResolveKelvinSchemeGetsMireds(t *testing.T) {
	pair, ok := testResolver().Resolve("make it warm")
	if !ok {
		t.Fatal("warm should resolve")
	}
	if pair[0].Ct == nil {
		t.Fatal("expected a ct setting")
	}
	if *pair[0].Ct < 153 || *pair[0].Ct > 500 {
		t.Fatalf("ct %d outside mired range", *pair[0].Ct)
	}
}

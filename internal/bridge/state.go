package bridge

import (
	"math"
	"time"

	"github.com/amimof/huego"
)

// Brightness and mired bounds of the controlled fixtures.
const (
	BriMax   uint8  = 254
	MiredMin uint16 = 153
	MiredMax uint16 = 500
)

// State is a partial desired state for one fixture. Nil fields are left
// untouched, with one exception: the v1 wire format always carries the power
// flag, so a nil On is sent as "on".
type State struct {
	On         *bool
	Bri        *uint8
	Ct         *uint16 // mireds
	XY         []float32
	Hue        *uint16
	Sat        *uint8
	Effect     string
	Transition *time.Duration // nil = bridge default (400ms)
}

// toHuego converts the partial state to the v1 request body.
func (s State) toHuego() huego.State {
	hs := huego.State{On: true}
	if s.On != nil {
		hs.On = *s.On
	}
	if s.Bri != nil {
		hs.Bri = *s.Bri
	}
	if s.Ct != nil {
		hs.Ct = *s.Ct
	}
	if len(s.XY) == 2 {
		hs.Xy = []float32{s.XY[0], s.XY[1]}
	}
	if s.Hue != nil {
		hs.Hue = *s.Hue
	}
	if s.Sat != nil {
		hs.Sat = *s.Sat
	}
	if s.Effect != "" {
		hs.Effect = s.Effect
	}
	if s.Transition != nil {
		// transitiontime is in 100ms ticks and a zero value is dropped from
		// the wire format, so "instant" becomes one tick
		tt := uint16(*s.Transition / (100 * time.Millisecond))
		if tt == 0 {
			tt = 1
		}
		hs.TransitionTime = tt
	}
	return hs
}

// fromHuego converts a reported light state to the partial model.
func fromHuego(hs *huego.State) State {
	if hs == nil {
		return State{}
	}
	st := State{
		On:     boolPtr(hs.On),
		Bri:    uint8Ptr(hs.Bri),
		Effect: hs.Effect,
	}
	if hs.Ct != 0 {
		st.Ct = uint16Ptr(hs.Ct)
	}
	if len(hs.Xy) == 2 {
		st.XY = []float32{hs.Xy[0], hs.Xy[1]}
	}
	if hs.Hue != 0 || hs.Sat != 0 {
		st.Hue = uint16Ptr(hs.Hue)
		st.Sat = uint8Ptr(hs.Sat)
	}
	return st
}

// KelvinToMired maps a Kelvin temperature onto the fixture's mired range via a
// linear interpolation between [kelvinMin, kelvinMax] and [MiredMax, MiredMin],
// clamped to [MiredMin, MiredMax] for out-of-range input.
func KelvinToMired(kelvin, kelvinMin, kelvinMax int) uint16 {
	if kelvinMax <= kelvinMin {
		return MiredMax
	}
	t := float64(kelvin-kelvinMin) / float64(kelvinMax-kelvinMin)
	m := float64(MiredMax) - t*float64(MiredMax-MiredMin)
	if m < float64(MiredMin) {
		m = float64(MiredMin)
	}
	if m > float64(MiredMax) {
		m = float64(MiredMax)
	}
	return uint16(math.Round(m))
}

// RGBToState converts an 8-bit RGB triple to an xy color point with a
// luminance-derived brightness, using the Hue wide-gamut conversion.
func RGBToState(r, g, b uint8) State {
	rf := gammaExpand(float64(r) / 255.0)
	gf := gammaExpand(float64(g) / 255.0)
	bf := gammaExpand(float64(b) / 255.0)

	x := rf*0.664511 + gf*0.154324 + bf*0.162028
	y := rf*0.283881 + gf*0.668433 + bf*0.047685
	z := rf*0.000088 + gf*0.072310 + bf*0.986039

	sum := x + y + z
	st := State{On: boolPtr(true)}
	if sum == 0 {
		st.XY = []float32{0.3127, 0.3290} // D65 white point for pure black input
		st.Bri = uint8Ptr(1)
		return st
	}
	st.XY = []float32{float32(x / sum), float32(y / sum)}

	bri := math.Round(y * float64(BriMax))
	if bri < 1 {
		bri = 1
	}
	if bri > float64(BriMax) {
		bri = float64(BriMax)
	}
	st.Bri = uint8Ptr(uint8(bri))
	return st
}

func gammaExpand(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

func boolPtr(b bool) *bool       { return &b }
func uint8Ptr(v uint8) *uint8    { return &v }
func uint16Ptr(v uint16) *uint16 { return &v }

package effects

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/config"
)

var hexCodeRe = regexp.MustCompile(`#([0-9A-Fa-f]{6})`)

type palette struct {
	name     string
	keywords []string
	settings []bridge.State
}

// Resolver turns free-text chat input into a left/right pair of color
// settings, by hex-code extraction or keyword matching against the configured
// schemes.
type Resolver struct {
	palettes []palette
}

// NewResolver compiles the configured schemes. Keyword aliases are
// deduplicated; Kelvin temperatures are mapped to mireds up front.
func NewResolver(schemes []config.Scheme, kelvinMin, kelvinMax int) *Resolver {
	r := &Resolver{}
	for _, sc := range schemes {
		p := palette{name: sc.Name}

		seen := make(map[string]struct{}, len(sc.Keywords))
		for _, kw := range sc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			p.keywords = append(p.keywords, kw)
		}

		for _, set := range sc.Settings {
			st := bridge.State{
				Bri:    set.Bri,
				Hue:    set.Hue,
				Sat:    set.Sat,
				Effect: set.Effect,
			}
			on := true
			st.On = &on
			if len(set.XY) == 2 {
				st.XY = []float32{set.XY[0], set.XY[1]}
			}
			if set.Kelvin != 0 {
				ct := bridge.KelvinToMired(set.Kelvin, kelvinMin, kelvinMax)
				st.Ct = &ct
			}
			p.settings = append(p.settings, st)
		}
		if len(p.settings) == 0 {
			continue
		}
		r.palettes = append(r.palettes, p)
	}
	return r
}

// Resolve returns the settings for the left and right fixture. The second
// return value is false when neither strategy matched anything.
func (r *Resolver) Resolve(text string) ([2]bridge.State, bool) {
	if pair, ok := resolveHex(text); ok {
		return pair, true
	}
	return r.resolveKeywords(text)
}

func resolveHex(text string) ([2]bridge.State, bool) {
	matches := hexCodeRe.FindAllStringSubmatch(text, 2)
	if len(matches) == 0 {
		return [2]bridge.State{}, false
	}

	states := make([]bridge.State, 0, 2)
	for _, m := range matches {
		v, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			continue
		}
		states = append(states, bridge.RGBToState(uint8(v>>16), uint8(v>>8), uint8(v)))
	}

	switch len(states) {
	case 0:
		return [2]bridge.State{}, false
	case 1:
		return [2]bridge.State{states[0], states[0]}, true
	default:
		return [2]bridge.State{states[0], states[1]}, true
	}
}

type scoredSetting struct {
	key   int
	state bridge.State
}

func (r *Resolver) resolveKeywords(text string) ([2]bridge.State, bool) {
	// Wrap in single spaces so keywords only match as whole tokens
	padded := " " + strings.Join(strings.Fields(strings.ToLower(text)), " ") + " "

	var found []scoredSetting
	for _, p := range r.palettes {
		for _, kw := range p.keywords {
			idx := strings.Index(padded, " "+kw+" ")
			if idx < 0 {
				continue
			}
			key := idx
			if len(p.settings) == 1 {
				// Single-setting schemes rank behind every multi-setting
				// match regardless of position
				key += len(padded)
			}
			for _, st := range p.settings {
				found = append(found, scoredSetting{key: key, state: st})
			}
		}
	}

	if len(found) == 0 {
		return [2]bridge.State{}, false
	}
	if len(found) == 1 {
		return [2]bridge.State{found[0].state, found[0].state}, true
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].key < found[j].key })
	return [2]bridge.State{found[0].state, found[1].state}, true
}

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig               `yaml:"hue"`
	Fixtures        FixturesConfig          `yaml:"fixtures"`
	Reset           map[string]InitialState `yaml:"reset"`
	Twitch          TwitchConfig            `yaml:"twitch"`
	Effects         EffectsConfig           `yaml:"effects"`
	Schemes         []Scheme                `yaml:"color_schemes"`
	Triggers        TriggersConfig          `yaml:"triggers"`
	Database        DatabaseConfig          `yaml:"database"`
	Ledger          LedgerConfig            `yaml:"ledger"`
	Log             LogConfig               `yaml:"log"`
	Script          string                  `yaml:"script"`
	ShutdownTimeout Duration                `yaml:"shutdown_timeout"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge  string   `yaml:"bridge"` // empty = discover
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"` // HTTP timeout for bridge API requests

	MaxRPS       float64  `yaml:"max_rps"`       // Bridge command rate limit (default: 10)
	RetryBackoff Duration `yaml:"retry_backoff"` // Backoff between connect attempts (default: 10s)

	// Color temperature range of the controlled fixtures
	KelvinMin int `yaml:"kelvin_min"` // default: 2000
	KelvinMax int `yaml:"kelvin_max"` // default: 6500
}

// FixturesConfig maps fixture slots to Hue light IDs. Zero means the slot
// is absent and commands to it are skipped (timing is still honored).
type FixturesConfig struct {
	KeyLeft    int `yaml:"key_left"`
	KeyRight   int `yaml:"key_right"`
	StripLeft  int `yaml:"strip_left"`
	StripRight int `yaml:"strip_right"`
	Back       int `yaml:"back"`
}

// InitialState is the per-fixture target applied by the reset effect.
type InitialState struct {
	On     *bool     `yaml:"on,omitempty"`
	Bri    *uint8    `yaml:"bri,omitempty"`
	Kelvin int       `yaml:"kelvin,omitempty"`
	XY     []float32 `yaml:"xy,omitempty"`
}

// TwitchConfig contains chat connection settings
type TwitchConfig struct {
	Channel string `yaml:"channel"`
	Nick    string `yaml:"nick"`
	Token   string `yaml:"token"` // oauth:... token
}

// Enabled reports whether a chat connection is configured.
func (c *TwitchConfig) Enabled() bool {
	return c.Channel != ""
}

// EffectsConfig contains tunables for the built-in effects
type EffectsConfig struct {
	ColorTransition Duration  `yaml:"color_transition"` // !color transition (default: 1s)
	RotateCycles    int       `yaml:"rotate_cycles"`    // raid chase cycles (default: 8)
	FlashCycles     int       `yaml:"flash_cycles"`     // flash cycles (default: 4)
	WarmKelvin      int       `yaml:"warm_kelvin"`      // sub/resub/gift flashes (default: 2700)
	CoolKelvin      int       `yaml:"cool_kelvin"`      // bits flashes (default: 6000)
	RotateKelvin    int       `yaml:"rotate_kelvin"`    // key light temperature while rotating (default: 6500)
	AccentXY        []float32 `yaml:"accent_xy"`        // strip color while rotating
	AccentBri       uint8     `yaml:"accent_bri"`       // strip brightness while rotating (default: 64)
}

// Scheme is a named palette matched by the color command keyword strategy.
type Scheme struct {
	Name     string    `yaml:"name"`
	Keywords []string  `yaml:"keywords"`
	Settings []Setting `yaml:"settings"` // 1 or 2 entries
}

// Setting is one color fragment of a scheme.
type Setting struct {
	Bri    *uint8    `yaml:"bri,omitempty"`
	Kelvin int       `yaml:"kelvin,omitempty"`
	XY     []float32 `yaml:"xy,omitempty"`
	Hue    *uint16   `yaml:"hue,omitempty"`
	Sat    *uint8    `yaml:"sat,omitempty"`
	Effect string    `yaml:"effect,omitempty"`
}

// TriggersConfig contains the HTTP trigger server settings
type TriggersConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains effect-run ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if cfg.Hue.Token == "" {
		return nil, fmt.Errorf("hue.token is required")
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(30 * time.Second)
	}
	if cfg.Hue.MaxRPS == 0 {
		cfg.Hue.MaxRPS = 10.0
	}
	if cfg.Hue.RetryBackoff == 0 {
		cfg.Hue.RetryBackoff = Duration(10 * time.Second)
	}
	if cfg.Hue.KelvinMin == 0 {
		cfg.Hue.KelvinMin = 2000
	}
	if cfg.Hue.KelvinMax == 0 {
		cfg.Hue.KelvinMax = 6500
	}

	// Effect defaults
	if cfg.Effects.ColorTransition == 0 {
		cfg.Effects.ColorTransition = Duration(1 * time.Second)
	}
	if cfg.Effects.RotateCycles == 0 {
		cfg.Effects.RotateCycles = 8
	}
	if cfg.Effects.FlashCycles == 0 {
		cfg.Effects.FlashCycles = 4
	}
	if cfg.Effects.WarmKelvin == 0 {
		cfg.Effects.WarmKelvin = 2700
	}
	if cfg.Effects.CoolKelvin == 0 {
		cfg.Effects.CoolKelvin = 6000
	}
	if cfg.Effects.RotateKelvin == 0 {
		cfg.Effects.RotateKelvin = 6500
	}
	if len(cfg.Effects.AccentXY) != 2 {
		cfg.Effects.AccentXY = []float32{0.675, 0.322}
	}
	if cfg.Effects.AccentBri == 0 {
		cfg.Effects.AccentBri = 64
	}

	// Built-in palettes when none are configured
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = DefaultSchemes()
	}

	// Ledger defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./blinkd.sqlite"
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Trigger server defaults
	if cfg.Triggers.Port == 0 {
		cfg.Triggers.Port = 8666
	}
	if cfg.Triggers.Host == "" {
		cfg.Triggers.Host = "0.0.0.0"
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// DefaultSchemes returns the built-in color palettes.
func DefaultSchemes() []Scheme {
	bri := func(v uint8) *uint8 { return &v }
	return []Scheme{
		{
			Name:     "rainbow",
			Keywords: []string{"rainbow", "colorloop", "party"},
			Settings: []Setting{
				{Effect: "colorloop", Bri: bri(254)},
				{Effect: "colorloop", Bri: bri(254)},
			},
		},
		{
			Name:     "fire",
			Keywords: []string{"fire", "flame", "cozy"},
			Settings: []Setting{
				{XY: []float32{0.6, 0.38}, Bri: bri(220)},
				{XY: []float32{0.55, 0.41}, Bri: bri(180)},
			},
		},
		{
			Name:     "ocean",
			Keywords: []string{"ocean", "sea", "aqua"},
			Settings: []Setting{
				{XY: []float32{0.16, 0.24}, Bri: bri(220)},
				{XY: []float32{0.17, 0.34}, Bri: bri(220)},
			},
		},
		{Name: "red", Keywords: []string{"red"}, Settings: []Setting{{XY: []float32{0.675, 0.322}, Bri: bri(254)}}},
		{Name: "green", Keywords: []string{"green"}, Settings: []Setting{{XY: []float32{0.214, 0.709}, Bri: bri(254)}}},
		{Name: "blue", Keywords: []string{"blue"}, Settings: []Setting{{XY: []float32{0.167, 0.04}, Bri: bri(254)}}},
		{Name: "purple", Keywords: []string{"purple", "violet"}, Settings: []Setting{{XY: []float32{0.25, 0.1}, Bri: bri(254)}}},
		{Name: "pink", Keywords: []string{"pink", "magenta"}, Settings: []Setting{{XY: []float32{0.38, 0.16}, Bri: bri(254)}}},
		{Name: "orange", Keywords: []string{"orange"}, Settings: []Setting{{XY: []float32{0.56, 0.4}, Bri: bri(254)}}},
		{Name: "yellow", Keywords: []string{"yellow"}, Settings: []Setting{{XY: []float32{0.46, 0.47}, Bri: bri(254)}}},
		{Name: "white", Keywords: []string{"white", "default"}, Settings: []Setting{{Kelvin: 4000, Bri: bri(254)}}},
		{Name: "warm", Keywords: []string{"warm", "candle"}, Settings: []Setting{{Kelvin: 2200, Bri: bri(200)}}},
		{Name: "cold", Keywords: []string{"cold", "ice", "daylight"}, Settings: []Setting{{Kelvin: 6500, Bri: bri(254)}}},
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}

// Package config layers plotter settings from three sources, lowest
// priority first: built-in defaults, a YAML file, and explicit overrides
// (typically flags).  Overrides use pointer fields so an explicit zero or
// false survives layering instead of being mistaken for "not set".
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/plotterlab/axidraw/dispatch"
	"github.com/plotterlab/axidraw/motion"
)

// Settings is the fully-layered option set, as it appears in the YAML
// file.
type Settings struct {
	Model        int     `koanf:"model" yaml:"model"`
	Units        string  `koanf:"units" yaml:"units"`
	PenPosUp     int     `koanf:"pen_pos_up" yaml:"pen_pos_up"`
	PenPosDown   int     `koanf:"pen_pos_down" yaml:"pen_pos_down"`
	PenDelayUp   int     `koanf:"pen_delay_up" yaml:"pen_delay_up"`
	PenDelayDown int     `koanf:"pen_delay_down" yaml:"pen_delay_down"`
	SpeedPenDown float64 `koanf:"speed_pendown" yaml:"speed_pendown"`
	SpeedPenUp   float64 `koanf:"speed_penup" yaml:"speed_penup"`
	Microstep    int     `koanf:"microstep" yaml:"microstep"`
	AutoClipLift bool    `koanf:"auto_clip_lift" yaml:"auto_clip_lift"`
	Strict       bool    `koanf:"strict" yaml:"strict"`

	Port       string `koanf:"port" yaml:"port"`
	PortPolicy string `koanf:"port_policy" yaml:"port_policy"`

	ReportConnect    bool `koanf:"report_connect" yaml:"report_connect"`
	ReportButton     bool `koanf:"report_button" yaml:"report_button"`
	ReportKeyboard   bool `koanf:"report_keyboard" yaml:"report_keyboard"`
	ReportDisconnect bool `koanf:"report_disconnect" yaml:"report_disconnect"`
}

// Defaults are the built-in values, matching stock hardware behavior.
func Defaults() Settings {
	return Settings{
		Model:        1,
		Units:        "in",
		PenPosUp:     60,
		PenPosDown:   30,
		SpeedPenDown: 1.0,
		SpeedPenUp:   3.0,
		Microstep:    1,
		AutoClipLift: true,
		PortPolicy:   "first",
	}
}

// Overrides is the highest-priority layer.  Only non-nil fields apply.
type Overrides struct {
	Model        *int
	Units        *string
	PenPosUp     *int
	PenPosDown   *int
	PenDelayUp   *int
	PenDelayDown *int
	SpeedPenDown *float64
	SpeedPenUp   *float64
	Microstep    *int
	AutoClipLift *bool
	Strict       *bool
	Port         *string
	PortPolicy   *string
}

// flatten emits only the keys that were explicitly set.
func (o Overrides) flatten() map[string]interface{} {
	m := map[string]interface{}{}
	if o.Model != nil {
		m["model"] = *o.Model
	}
	if o.Units != nil {
		m["units"] = *o.Units
	}
	if o.PenPosUp != nil {
		m["pen_pos_up"] = *o.PenPosUp
	}
	if o.PenPosDown != nil {
		m["pen_pos_down"] = *o.PenPosDown
	}
	if o.PenDelayUp != nil {
		m["pen_delay_up"] = *o.PenDelayUp
	}
	if o.PenDelayDown != nil {
		m["pen_delay_down"] = *o.PenDelayDown
	}
	if o.SpeedPenDown != nil {
		m["speed_pendown"] = *o.SpeedPenDown
	}
	if o.SpeedPenUp != nil {
		m["speed_penup"] = *o.SpeedPenUp
	}
	if o.Microstep != nil {
		m["microstep"] = *o.Microstep
	}
	if o.AutoClipLift != nil {
		m["auto_clip_lift"] = *o.AutoClipLift
	}
	if o.Strict != nil {
		m["strict"] = *o.Strict
	}
	if o.Port != nil {
		m["port"] = *o.Port
	}
	if o.PortPolicy != nil {
		m["port_policy"] = *o.PortPolicy
	}
	return m
}

// Load layers defaults, then the YAML file at path (a missing file is not
// an error; any other read or parse failure is), then the overrides.
func Load(path string, over Overrides) (Settings, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Settings{}, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !strings.Contains(err.Error(), "no such") {
				return Settings{}, fmt.Errorf("config: loading %s: %v", path, err)
			}
		}
	}
	if err := k.Load(confmap.Provider(over.flatten(), "."), nil); err != nil {
		return Settings{}, err
	}
	s := Settings{}
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Motion converts the layered settings to the typed, validated session
// configuration.
func (s Settings) Motion() (motion.Config, error) {
	units, err := motion.ParseUnits(s.Units)
	if err != nil {
		return motion.Config{}, err
	}
	c := motion.Config{
		Model:              s.Model,
		Units:              units,
		PenUpPos:           s.PenPosUp,
		PenDownPos:         s.PenPosDown,
		PenDelayUpMS:       s.PenDelayUp,
		PenDelayDownMS:     s.PenDelayDown,
		SpeedPenDown:       s.SpeedPenDown,
		SpeedPenUp:         s.SpeedPenUp,
		MicrostepRes:       s.Microstep,
		AutoClipLift:       s.AutoClipLift,
		Strict:             s.Strict,
		EscalateConnect:    s.ReportConnect,
		EscalateButton:     s.ReportButton,
		EscalateKeyboard:   s.ReportKeyboard,
		EscalateDisconnect: s.ReportDisconnect,
	}
	return c, c.Validate()
}

// Selection converts the port fields to a dispatch selection.
func (s Settings) Selection() (dispatch.Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s.PortPolicy)) {
	case "first", "":
		return dispatch.Selection{Policy: dispatch.PolicyFirst}, nil
	case "port", "named":
		if s.Port == "" {
			return dispatch.Selection{}, fmt.Errorf("config: port policy %q needs a port", s.PortPolicy)
		}
		return dispatch.Selection{Policy: dispatch.PolicyPort, Port: s.Port}, nil
	case "all":
		return dispatch.Selection{Policy: dispatch.PolicyAll, Port: s.Port}, nil
	}
	return dispatch.Selection{}, fmt.Errorf("config: unknown port policy %q", s.PortPolicy)
}

package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/plotterlab/axidraw/config"
	"github.com/plotterlab/axidraw/dispatch"
	"github.com/plotterlab/axidraw/motion"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "axidraw-config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "axidraw.yml")
	if err := ioutil.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsOnly(t *testing.T) {
	s, err := config.Load("", config.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != 1 || s.Units != "in" || !s.AutoClipLift {
		t.Errorf("defaults = %+v", s)
	}
	c, err := s.Motion()
	if err != nil {
		t.Fatalf("default settings must validate: %v", err)
	}
	if c.Units != motion.UnitInch {
		t.Errorf("units = %v", c.Units)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeYAML(t, "model: 2\nunits: mm\nspeed_pendown: 2.5\n")
	s, err := config.Load(path, config.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != 2 || s.Units != "mm" || s.SpeedPenDown != 2.5 {
		t.Errorf("layered = %+v", s)
	}
	// keys absent from the file keep their defaults
	if s.PenPosUp != 60 || s.SpeedPenUp != 3.0 {
		t.Errorf("defaults lost under file layer: %+v", s)
	}
}

func TestOverridesBeatFile(t *testing.T) {
	path := writeYAML(t, "model: 2\nauto_clip_lift: true\n")
	model := 3
	clip := false
	s, err := config.Load(path, config.Overrides{Model: &model, AutoClipLift: &clip})
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != 3 {
		t.Errorf("model = %d, want the override", s.Model)
	}
	// an explicit false must survive layering, not read as unset
	if s.AutoClipLift {
		t.Error("explicit false override was dropped")
	}
}

func TestUnsetOverrideLeavesLayerAlone(t *testing.T) {
	path := writeYAML(t, "model: 2\n")
	s, err := config.Load(path, config.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != 2 {
		t.Errorf("model = %d, nil override must not reset the file value", s.Model)
	}
}

func TestMissingFileTolerated(t *testing.T) {
	if _, err := config.Load("/nonexistent/axidraw.yml", config.Overrides{}); err != nil {
		t.Errorf("missing file must fall back to defaults: %v", err)
	}
}

func TestMalformedFileFails(t *testing.T) {
	path := writeYAML(t, "model: [unclosed\n")
	if _, err := config.Load(path, config.Overrides{}); err == nil {
		t.Error("a malformed file must fail loudly, not fall back")
	}
}

func TestMotionValidation(t *testing.T) {
	s := config.Defaults()
	s.Units = "furlongs"
	if _, err := s.Motion(); err == nil {
		t.Error("unknown units must fail conversion")
	}
	s = config.Defaults()
	s.Model = 9
	if _, err := s.Motion(); err == nil {
		t.Error("unknown model must fail validation")
	}
}

func TestSelection(t *testing.T) {
	s := config.Defaults()
	sel, err := s.Selection()
	if err != nil || sel.Policy != dispatch.PolicyFirst {
		t.Errorf("default selection = %+v, %v", sel, err)
	}
	s.PortPolicy = "all"
	s.Port = "lefty"
	sel, err = s.Selection()
	if err != nil || sel.Policy != dispatch.PolicyAll || sel.Port != "lefty" {
		t.Errorf("all selection = %+v, %v", sel, err)
	}
	s.PortPolicy = "port"
	s.Port = ""
	if _, err := s.Selection(); err == nil {
		t.Error("port policy without a port must fail")
	}
	s.PortPolicy = "bogus"
	if _, err := s.Selection(); err == nil {
		t.Error("unknown policy must fail")
	}
}

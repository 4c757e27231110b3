package motion

import (
	"fmt"
	"strings"

	"github.com/plotterlab/axidraw/geom"
)

// Units selects the display unit system of the caller-facing API.  All
// internal bounds and wire distances are inches; conversion happens at this
// package's boundary and nowhere else.
type Units int

// Supported unit systems.
const (
	UnitInch Units = iota
	UnitCM
	UnitMM
)

// PerInch returns how many of the unit fit in one inch.
func (u Units) PerInch() float64 {
	switch u {
	case UnitCM:
		return 2.54
	case UnitMM:
		return 25.4
	default:
		return 1
	}
}

func (u Units) String() string {
	switch u {
	case UnitCM:
		return "cm"
	case UnitMM:
		return "mm"
	default:
		return "in"
	}
}

// ParseUnits accepts the common spellings of the three unit systems.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "inch", "inches", "":
		return UnitInch, nil
	case "cm", "centimeter", "centimeters":
		return UnitCM, nil
	case "mm", "millimeter", "millimeters":
		return UnitMM, nil
	}
	return UnitInch, fmt.Errorf("motion: unknown unit system %q", s)
}

// Hardware models and their travel envelopes, in inches.  Fixed per model;
// immutable for the life of a session.
var modelTravel = map[int]geom.Bounds{
	1: {Min: geom.Point{0, 0}, Max: geom.Point{11.81, 8.58}},  // AxiDraw V3, SE/A4
	2: {Min: geom.Point{0, 0}, Max: geom.Point{16.93, 11.69}}, // AxiDraw V3/A3, SE/A3
	3: {Min: geom.Point{0, 0}, Max: geom.Point{23.42, 8.58}},  // AxiDraw V3 XLX
	4: {Min: geom.Point{0, 0}, Max: geom.Point{6.30, 4.00}},   // AxiDraw MiniKit
}

// Travel returns the travel envelope for a hardware model, in inches.
func Travel(model int) (geom.Bounds, bool) {
	b, ok := modelTravel[model]
	return b, ok
}

// stepsPerInch at sixteenth microstepping.
const stepsPerInch = 2032.0

// boundsSnapTolerance absorbs float round-off at the travel edges: a target
// this close to a bound is treated as exactly on it.
const boundsSnapTolerance = 1e-9

// Config is the typed, validated option set for one plotter session.
// Layering (command line over file over defaults) happens in the config
// package; by the time a Config reaches Configure every field is concrete.
type Config struct {
	// Model selects the travel envelope, 1-4.
	Model int

	// Units is the display unit system for move arguments and queries.
	Units Units

	// PenUpPos and PenDownPos are servo positions in percent, 0-100.
	PenUpPos   int
	PenDownPos int

	// PenDelayUpMS and PenDelayDownMS are added to the computed servo
	// travel time.  May be negative to trim a sluggish default.
	PenDelayUpMS   int
	PenDelayDownMS int

	// SpeedPenDown and SpeedPenUp are travel speeds in inches/second.
	SpeedPenDown float64
	SpeedPenUp   float64

	// MicrostepRes is the EM resolution argument, 1-5.
	MicrostepRes int

	// AutoClipLift raises the pen whenever a requested segment is
	// clipped at the travel boundary, so out-of-bounds exits never drag
	// ink to the edge.
	AutoClipLift bool

	// Strict makes motion calls on a plotter that is not connected
	// return an error instead of quietly doing nothing.
	Strict bool

	// Escalation toggles: when set, the matching terminal stop is also
	// returned as a hard error from the call that detected it.  The
	// status code is recorded either way.
	EscalateConnect    bool
	EscalateButton     bool
	EscalateKeyboard   bool
	EscalateDisconnect bool
}

// Validate checks field ranges and fills the travel bounds for the model.
func (c Config) Validate() error {
	if _, ok := modelTravel[c.Model]; !ok {
		return fmt.Errorf("motion: unknown hardware model %d", c.Model)
	}
	if c.PenUpPos < 0 || c.PenUpPos > 100 {
		return fmt.Errorf("motion: pen up position %d out of range 0-100", c.PenUpPos)
	}
	if c.PenDownPos < 0 || c.PenDownPos > 100 {
		return fmt.Errorf("motion: pen down position %d out of range 0-100", c.PenDownPos)
	}
	if c.SpeedPenDown <= 0 || c.SpeedPenUp <= 0 {
		return fmt.Errorf("motion: speeds must be positive, got down=%v up=%v", c.SpeedPenDown, c.SpeedPenUp)
	}
	if c.MicrostepRes < 1 || c.MicrostepRes > 5 {
		return fmt.Errorf("motion: microstep resolution %d out of range 1-5", c.MicrostepRes)
	}
	return nil
}

// servoMSPerPercent approximates how long the pen servo takes to traverse
// one percent of its range.
const servoMSPerPercent = 3

// penDelay computes the motion-queue pause for a pen transition: servo
// travel time plus the user trim, floored at zero.
func (c Config) penDelay(up bool) int {
	dist := c.PenUpPos - c.PenDownPos
	if dist < 0 {
		dist = -dist
	}
	ms := dist * servoMSPerPercent
	if up {
		ms += c.PenDelayUpMS
	} else {
		ms += c.PenDelayDownMS
	}
	if ms < 0 {
		ms = 0
	}
	return ms
}

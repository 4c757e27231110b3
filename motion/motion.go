/*Package motion is the interactive engine for one plotter: it owns the
turtle pose (what the caller asked for) and the physical pose (what the
hardware was actually sent), scales units, clips every requested segment
against the travel envelope, and dispatches pen and move commands through
the EBB protocol layer.

Two positions on purpose.  The turtle tracks the logical request and may
leave the envelope freely; the physical pose only ever holds values the
hardware was commanded to, and is inside the travel bounds at all times.
*/
package motion

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/plotterlab/axidraw/ebb"
	"github.com/plotterlab/axidraw/geom"
	"github.com/plotterlab/axidraw/kinematics"
)

// State is the session lifecycle.
type State int

// Session states.  Only Connected accepts motion and pen commands.
const (
	Uninitialized State = iota
	Configured
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

// StopCode is the terminal cause recorded in Status.Stopped.  Zero while
// running.
type StopCode int

// Terminal stop causes.
const (
	StoppedNone       StopCode = 0
	StoppedNoConnect  StopCode = 101
	StoppedByButton   StopCode = 102
	StoppedByKeyboard StopCode = 103
	StoppedLostUSB    StopCode = 104
)

// Status is the per-unit record read by error handling and by callers
// after any operation.
type Status struct {
	// Port is the device node of the live connection, empty when none.
	Port string

	// Stopped is StoppedNone while running, else the terminal cause.
	Stopped StopCode

	// FWVersion is the firmware version token, empty when unknown.
	FWVersion string
}

// ErrStopped is returned (when the matching escalation toggle is set) by
// the call that detected a terminal stop.
type ErrStopped struct {
	Code StopCode
}

func (e ErrStopped) Error() string {
	switch e.Code {
	case StoppedNoConnect:
		return "motion: failed to connect to plotter"
	case StoppedByButton:
		return "motion: stopped by pause button"
	case StoppedByKeyboard:
		return "motion: stopped by interrupt"
	case StoppedLostUSB:
		return "motion: lost connectivity with plotter"
	}
	return fmt.Sprintf("motion: stopped (code %d)", e.Code)
}

// ErrNotConnected is returned from motion calls in the Strict error policy
// when the plotter is not in the Connected state.
type ErrNotConnected struct {
	State State
}

func (e ErrNotConnected) Error() string {
	return fmt.Sprintf("motion: plotter is %s, not connected", e.State)
}

// Interrupt is a cooperative cancellation flag, checked between motion
// segments and before serial writes, never delivered mid-command.  One
// Interrupt may be shared by any number of workers; Trip is safe from any
// goroutine.
type Interrupt struct {
	flag int32
}

// Trip requests a stop.
func (i *Interrupt) Trip() {
	atomic.StoreInt32(&i.flag, 1)
}

// Tripped reports whether a stop was requested.  Nil receivers report
// false so an un-wired plotter needs no placeholder.
func (i *Interrupt) Tripped() bool {
	return i != nil && atomic.LoadInt32(&i.flag) == 1
}

// Board is the protocol surface the engine drives.  *ebb.Device satisfies
// it; tests substitute a recorder.
type Board interface {
	Open() error
	Close() error
	SetPen(up bool, delayMS int) error
	MoveMixed(durMS, deltaA, deltaB int) error
	EnableMotors(resolution int) error
	DisableMotors() error
	QueryButton() (bool, error)
	FirmwareVersion() string
}

// Pose is a position and pen state in machine-native inches.
type Pose struct {
	X     float64
	Y     float64
	PenUp bool
}

// Plotter is the motion state machine for one physical unit.  Not safe for
// concurrent use; in multi-unit operation each worker owns its own
// Plotter, sharing only an Interrupt.
type Plotter struct {
	// BoardFactory opens the protocol layer for a port path.  Defaults
	// to the EBB device; tests substitute fakes.
	BoardFactory func(port string) Board

	// Interrupt, when set, is polled between segments.
	Interrupt *Interrupt

	cfg    Config
	state  State
	board  Board
	status Status
	bounds geom.Bounds

	turtle Pose
	phys   Pose

	buttonPoll *rate.Limiter
}

// NewPlotter returns an uninitialized plotter.
func NewPlotter() *Plotter {
	return &Plotter{
		BoardFactory: func(port string) Board { return ebb.NewDevice(port) },
		state:        Uninitialized,
	}
}

// Configure validates and installs the session options.  Valid from any
// state except Connected.
func (p *Plotter) Configure(cfg Config) error {
	if p.state == Connected {
		return fmt.Errorf("motion: cannot reconfigure while connected")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.cfg = cfg
	p.bounds = modelTravel[cfg.Model]
	p.state = Configured
	return nil
}

// Connect opens the board on the given port, performs the handshake, and
// initializes pen-up at the origin.  On failure the status records
// StoppedNoConnect and siblings (in multi-unit runs) are unaffected.
func (p *Plotter) Connect(port string) error {
	if p.state != Configured && p.state != Disconnected {
		return fmt.Errorf("motion: connect requires a configured plotter, state is %s", p.state)
	}
	board := p.BoardFactory(port)
	if err := board.Open(); err != nil {
		p.status.Stopped = StoppedNoConnect
		if p.cfg.EscalateConnect {
			return err
		}
		return nil
	}
	p.board = board
	p.status = Status{Port: port, FWVersion: board.FirmwareVersion()}
	if err := board.EnableMotors(p.cfg.MicrostepRes); err != nil {
		return p.lostConnection(err)
	}
	if err := board.SetPen(true, p.cfg.penDelay(true)); err != nil {
		return p.lostConnection(err)
	}
	p.turtle = Pose{X: 0, Y: 0, PenUp: true}
	p.phys = Pose{X: 0, Y: 0, PenUp: true}
	// pause-button polls between segments are rate limited so short
	// segments do not drown the board in QB queries
	p.buttonPoll = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	p.state = Connected
	return nil
}

// Disconnect raises the pen and closes the connection.
func (p *Plotter) Disconnect() error {
	if p.state != Connected {
		p.state = Disconnected
		return nil
	}
	// best effort; a dying link must not keep the close from happening
	_ = p.board.SetPen(true, p.cfg.penDelay(true))
	p.phys.PenUp = true
	p.turtle.PenUp = true
	err := p.board.Close()
	p.board = nil
	p.state = Disconnected
	return err
}

// notConnected applies the configured error policy for calls outside the
// Connected state: quiet no-op by default, an error under Strict.
func (p *Plotter) notConnected() error {
	if p.cfg.Strict {
		return ErrNotConnected{State: p.state}
	}
	return nil
}

// MoveTo raises the pen and moves to (x, y) absolute, in display units.
// Away from the Connected state the turtle still advances; only hardware
// dispatch is skipped (or, under Strict, the call errors).
func (p *Plotter) MoveTo(x, y float64) error {
	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
	}
	if err := p.PenUp(); err != nil {
		return err
	}
	return p.planMove(false, x, y)
}

// LineTo lowers the pen and draws to (x, y) absolute, in display units.
func (p *Plotter) LineTo(x, y float64) error {
	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
	}
	if err := p.PenDown(); err != nil {
		return err
	}
	return p.planMove(false, x, y)
}

// MoveRel is MoveTo with a displacement from the current turtle position.
func (p *Plotter) MoveRel(dx, dy float64) error {
	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
	}
	if err := p.PenUp(); err != nil {
		return err
	}
	return p.planMove(true, dx, dy)
}

// LineRel is LineTo with a displacement from the current turtle position.
func (p *Plotter) LineRel(dx, dy float64) error {
	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
	}
	if err := p.PenDown(); err != nil {
		return err
	}
	return p.planMove(true, dx, dy)
}

// snap forces a coordinate onto a bound it has drifted from by float
// round-off.
func snap(v, bound float64) float64 {
	if d := v - bound; d > -boundsSnapTolerance && d < boundsSnapTolerance {
		return bound
	}
	return v
}

// planMove is the per-move algorithm: unit scale, snap, clip, pen-manage,
// dispatch, and unconditionally advance the turtle to the unclipped target.
func (p *Plotter) planMove(relative bool, tx, ty float64) error {
	scale := p.cfg.Units.PerInch()
	x := tx / scale
	y := ty / scale
	if relative {
		x += p.turtle.X
		y += p.turtle.Y
	}
	x = snap(snap(x, p.bounds.Min.X), p.bounds.Max.X)
	y = snap(snap(y, p.bounds.Min.Y), p.bounds.Max.Y)

	seg := geom.Segment{P0: geom.Point{X: p.turtle.X, Y: p.turtle.Y}, P1: geom.Point{X: x, Y: y}}
	clipped, ok := geom.ClipSegment(seg, p.bounds)
	if ok && p.state == Connected {
		if err := p.executeClipped(seg, clipped); err != nil {
			return err
		}
	}
	// the turtle always reflects the logical request, in or out of
	// bounds; only the physical pose is limited to what was dispatched
	p.turtle.X = x
	p.turtle.Y = y
	return nil
}

// executeClipped drives the hardware along the in-bounds part of a
// requested segment.
func (p *Plotter) executeClipped(requested, clipped geom.Segment) error {
	startClipped := clipped.P0.Dist(requested.P0) > boundsSnapTolerance
	endClipped := clipped.P1.Dist(requested.P1) > boundsSnapTolerance

	if startClipped {
		// entering the envelope from outside: travel to the entry point
		// with the pen up when the auto-clip policy asks for it
		if p.cfg.AutoClipLift && !p.turtle.PenUp && !p.phys.PenUp {
			if err := p.penHardware(true); err != nil {
				return err
			}
		}
		if err := p.physMove(clipped.P0); err != nil {
			return err
		}
	}
	if !p.turtle.PenUp && p.phys.PenUp {
		// restore the logical pen-down before drawing the in-bounds part
		if err := p.penHardware(false); err != nil {
			return err
		}
	}
	if err := p.physMove(clipped.P1); err != nil {
		return err
	}
	if endClipped && p.cfg.AutoClipLift && !p.turtle.PenUp && !p.phys.PenUp {
		// out-of-bounds exit is always pen-up
		if err := p.penHardware(true); err != nil {
			return err
		}
	}
	return nil
}

// physMove issues one XM move from the current physical position to target
// (inches, already clipped) and advances the physical pose.
func (p *Plotter) physMove(target geom.Point) error {
	if p.state != Connected {
		return nil
	}
	if p.Interrupt.Tripped() {
		return p.keyboardStop()
	}
	dx := target.X - p.phys.X
	dy := target.Y - p.phys.Y
	stepsX := int(roundHalfAway(dx * stepsPerInch))
	stepsY := int(roundHalfAway(dy * stepsPerInch))
	if stepsX == 0 && stepsY == 0 {
		p.phys.X = target.X
		p.phys.Y = target.Y
		return nil
	}
	speed := p.cfg.SpeedPenDown
	if p.phys.PenUp {
		speed = p.cfg.SpeedPenUp
	}
	dur := kinematics.MoveDurationMS(geom.Point{}.Dist(geom.Point{X: dx, Y: dy}), speed)
	if err := p.board.MoveMixed(dur, stepsX, stepsY); err != nil {
		return p.lostConnection(err)
	}
	p.phys.X = target.X
	p.phys.Y = target.Y
	return nil
}

func roundHalfAway(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}

// penHardware commands the servo and tracks the physical pen state.
func (p *Plotter) penHardware(up bool) error {
	if p.state != Connected || p.board == nil {
		return nil
	}
	if p.Interrupt.Tripped() {
		return p.keyboardStop()
	}
	if err := p.board.SetPen(up, p.cfg.penDelay(up)); err != nil {
		return p.lostConnection(err)
	}
	p.phys.PenUp = up
	return nil
}

// PenUp records the logical pen-up and, when connected and the hardware
// pen is down, raises it.
func (p *Plotter) PenUp() error {
	p.turtle.PenUp = true
	if p.state != Connected || p.phys.PenUp {
		return nil
	}
	return p.penHardware(true)
}

// PenDown records the logical pen-down and, when connected and the
// hardware pen is up, lowers it.  With auto-clip-lift on, the physical
// lowering is skipped while the position is outside the envelope, so the
// pen never drops onto the limit stops.
func (p *Plotter) PenDown() error {
	p.turtle.PenUp = false
	if p.state != Connected || !p.phys.PenUp {
		return nil
	}
	if p.cfg.AutoClipLift && !p.bounds.Contains(geom.Point{X: p.turtle.X, Y: p.turtle.Y}) {
		return nil
	}
	return p.penHardware(false)
}

// CheckStop polls the shared interrupt and (rate limited) the hardware
// pause button.  Called between segments; a detected stop disconnects
// cleanly and is reflected in Status.
func (p *Plotter) CheckStop() error {
	if p.state != Connected {
		return nil
	}
	if p.Interrupt.Tripped() {
		return p.keyboardStop()
	}
	if p.buttonPoll != nil && p.buttonPoll.Allow() {
		pressed, err := p.board.QueryButton()
		if err != nil {
			return p.lostConnection(err)
		}
		if pressed {
			p.status.Stopped = StoppedByButton
			p.Disconnect()
			if p.cfg.EscalateButton {
				return ErrStopped{Code: StoppedByButton}
			}
		}
	}
	return nil
}

func (p *Plotter) keyboardStop() error {
	p.status.Stopped = StoppedByKeyboard
	p.Disconnect()
	if p.cfg.EscalateKeyboard {
		return ErrStopped{Code: StoppedByKeyboard}
	}
	return nil
}

func (p *Plotter) lostConnection(cause error) error {
	p.status.Stopped = StoppedLostUSB
	if p.board != nil {
		p.board.Close()
		p.board = nil
	}
	p.state = Disconnected
	if p.cfg.EscalateDisconnect {
		return fmt.Errorf("motion: lost connectivity: %v", cause)
	}
	return nil
}

// Position returns the turtle position in display units.
func (p *Plotter) Position() (x, y float64) {
	scale := p.cfg.Units.PerInch()
	return p.turtle.X * scale, p.turtle.Y * scale
}

// PhysicalPosition returns the last hardware-commanded position in display
// units.
func (p *Plotter) PhysicalPosition() (x, y float64) {
	scale := p.cfg.Units.PerInch()
	return p.phys.X * scale, p.phys.Y * scale
}

// PenIsUp returns the logical (turtle) pen state.
func (p *Plotter) PenIsUp() bool {
	return p.turtle.PenUp
}

// PhysicalPenIsUp returns the hardware pen state.
func (p *Plotter) PhysicalPenIsUp() bool {
	return p.phys.PenUp
}

// Units returns the configured display unit system.
func (p *Plotter) Units() Units {
	return p.cfg.Units
}

// CurrentState returns the session state.
func (p *Plotter) CurrentState() State {
	return p.state
}

// Status returns a copy of the per-unit status record.
func (p *Plotter) Status() Status {
	return p.status
}

// Bounds returns the travel envelope, in inches.
func (p *Plotter) Bounds() geom.Bounds {
	return p.bounds
}

package dispatch_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/plotterlab/axidraw/dispatch"
	"github.com/plotterlab/axidraw/ebb"
	"github.com/plotterlab/axidraw/motion"
)

// quietBoard is a motion.Board that accepts everything.
type quietBoard struct {
	openErr error
}

func (b *quietBoard) Open() error                   { return b.openErr }
func (b *quietBoard) Close() error                  { return nil }
func (b *quietBoard) SetPen(bool, int) error        { return nil }
func (b *quietBoard) MoveMixed(int, int, int) error { return nil }
func (b *quietBoard) EnableMotors(int) error        { return nil }
func (b *quietBoard) DisableMotors() error          { return nil }
func (b *quietBoard) QueryButton() (bool, error)    { return false, nil }
func (b *quietBoard) FirmwareVersion() string       { return "2.7.0" }

type fakeLister struct {
	ports []ebb.PortInfo
	err   error
}

func (f fakeLister) List() ([]ebb.PortInfo, error) { return f.ports, f.err }

func threePorts() []ebb.PortInfo {
	return []ebb.PortInfo{
		{Path: "/dev/ttyACM0", Description: "EiBotBoard"},
		{Path: "/dev/ttyACM1", Description: "lefty - EiBotBoard", Nickname: "lefty"},
		{Path: "/dev/ttyACM2", Description: "EiBotBoard"},
	}
}

func testConfig() motion.Config {
	return motion.Config{
		Model:        2,
		PenUpPos:     60,
		PenDownPos:   30,
		SpeedPenDown: 2,
		SpeedPenUp:   3,
		MicrostepRes: 1,
		AutoClipLift: true,
	}
}

// dispatcher builds a Dispatcher whose plotters talk to quiet fake boards,
// with openErr injected for the named ports.
func dispatcher(ports []ebb.PortInfo, failOpen ...string) *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Lister: fakeLister{ports: ports},
		Config: testConfig(),
		NewPlotter: func() *motion.Plotter {
			p := motion.NewPlotter()
			p.BoardFactory = func(port string) motion.Board {
				b := &quietBoard{}
				for _, f := range failOpen {
					if f == port {
						b.openErr = errors.New("open " + port + ": no such device")
					}
				}
				return b
			}
			return p
		},
	}
}

func TestAllFoundFansOut(t *testing.T) {
	d := dispatcher(threePorts())
	var started sync.WaitGroup
	started.Add(3)
	var completed int32
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll}, func(p *motion.Plotter, port ebb.PortInfo) error {
		// every worker must be live at once: the primary and both
		// secondaries rendezvous here before any of them finishes
		started.Done()
		started.Wait()
		if err := p.MoveTo(1, 1); err != nil {
			return err
		}
		atomic.AddInt32(&completed, 1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("result count = %d", len(results))
	}
	if !results[0].Primary || results[0].Port.Path != "/dev/ttyACM0" {
		t.Errorf("primary = %+v, want first enumerated unit", results[0])
	}
	for _, r := range results[1:] {
		if r.Primary {
			t.Errorf("more than one primary: %+v", r)
		}
	}
	// the join happened before Run returned
	if n := atomic.LoadInt32(&completed); n != 3 {
		t.Errorf("completed workers at return = %d, want 3", n)
	}
}

func TestAllFoundExplicitPortIsPrimary(t *testing.T) {
	d := dispatcher(threePorts())
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll, Port: "/dev/ttyACM2"},
		func(p *motion.Plotter, port ebb.PortInfo) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Port.Path != "/dev/ttyACM2" {
		t.Errorf("primary = %s, want the requested port", results[0].Port.Path)
	}
	if len(results) != 3 {
		t.Errorf("result count = %d", len(results))
	}
}

func TestSecondaryFailureIsIsolated(t *testing.T) {
	d := dispatcher(threePorts())
	boom := errors.New("jam")
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll}, func(p *motion.Plotter, port ebb.PortInfo) error {
		if port.Path == "/dev/ttyACM1" {
			return boom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("a secondary failure must not fail the run: %v", err)
	}
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if r.Primary {
				t.Error("the failure landed on the primary")
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed units = %d, want 1", failed)
	}
}

func TestPrimaryFailurePropagates(t *testing.T) {
	d := dispatcher(threePorts())
	boom := errors.New("jam")
	_, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll}, func(p *motion.Plotter, port ebb.PortInfo) error {
		if port.Path == "/dev/ttyACM0" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("overall error = %v, want the primary's", err)
	}
}

func TestSecondaryConnectFailureIsIsolated(t *testing.T) {
	d := dispatcher(threePorts(), "/dev/ttyACM2")
	var ran int32
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll}, func(p *motion.Plotter, port ebb.PortInfo) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("a secondary connect failure must not fail the run: %v", err)
	}
	if atomic.LoadInt32(&ran) != 2 {
		t.Errorf("job ran on %d units, want the 2 that connected", ran)
	}
	for _, r := range results {
		if r.Port.Path == "/dev/ttyACM2" {
			if r.Err == nil {
				t.Error("the unconnectable unit must carry an error")
			}
			if r.Status.Stopped != motion.StoppedNoConnect {
				t.Errorf("status = %d, want %d", r.Status.Stopped, motion.StoppedNoConnect)
			}
		}
	}
}

func TestFirstFound(t *testing.T) {
	d := dispatcher(threePorts())
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyFirst},
		func(p *motion.Plotter, port ebb.PortInfo) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Port.Path != "/dev/ttyACM0" || !results[0].Primary {
		t.Errorf("first-found results = %+v", results)
	}
}

func TestPortPolicyByNickname(t *testing.T) {
	d := dispatcher(threePorts())
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyPort, Port: "lefty"},
		func(p *motion.Plotter, port ebb.PortInfo) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Port.Path != "/dev/ttyACM1" {
		t.Errorf("nickname selection = %+v", results)
	}
}

func TestPortPolicyNotFound(t *testing.T) {
	d := dispatcher(threePorts())
	_, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyPort, Port: "nosuch"},
		func(p *motion.Plotter, port ebb.PortInfo) error { return nil })
	var nf dispatch.ErrPortNotFound
	if !errors.As(err, &nf) || nf.Port != "nosuch" {
		t.Errorf("error = %v, want ErrPortNotFound", err)
	}
}

func TestNoBoards(t *testing.T) {
	d := dispatcher(nil)
	var ran int32
	_, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll}, func(p *motion.Plotter, port ebb.PortInfo) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	if !errors.Is(err, dispatch.ErrNoBoards) {
		t.Errorf("error = %v, want ErrNoBoards", err)
	}
	if ran != 0 {
		t.Error("no partial work on an empty enumeration")
	}
}

func TestSingleBoardNoFanOut(t *testing.T) {
	d := dispatcher(threePorts()[:1])
	results, err := d.Run(dispatch.Selection{Policy: dispatch.PolicyAll},
		func(p *motion.Plotter, port ebb.PortInfo) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].Primary {
		t.Errorf("single-unit results = %+v", results)
	}
}

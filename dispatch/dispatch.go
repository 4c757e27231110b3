// Package dispatch fans a plot job out over the attached plotters.  One
// unit is the primary: it runs synchronously on the calling goroutine and
// its result is the overall result.  Every other selected unit is a
// secondary, run on its own goroutine with its own plotter and connection;
// a secondary's failure is logged and recorded but never cancels or fails
// its siblings.
package dispatch

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/plotterlab/axidraw/ebb"
	"github.com/plotterlab/axidraw/motion"
)

// Policy selects which of the discovered units a job runs on.
type Policy int

// Selection policies.
const (
	// PolicyFirst plots on the first unit enumerated.
	PolicyFirst Policy = iota

	// PolicyPort plots on the one unit matching Selection.Port, by device
	// node or by nickname.
	PolicyPort

	// PolicyAll plots on every discovered unit.
	PolicyAll
)

// Selection names the units a dispatch run targets.
type Selection struct {
	Policy Policy

	// Port is the device node or nickname for PolicyPort.  Under
	// PolicyAll it is optional and only picks which unit is primary.
	Port string
}

// ErrNoBoards is returned when enumeration finds nothing attached.  No
// partial work is done.
var ErrNoBoards = errors.New("dispatch: no boards found")

// ErrPortNotFound is returned when PolicyPort names a unit that is not
// attached.
type ErrPortNotFound struct {
	Port string
}

func (e ErrPortNotFound) Error() string {
	return fmt.Sprintf("dispatch: no board matching %q", e.Port)
}

// Job is the work run once per selected unit.  The plotter arrives
// configured and connected; the job must not retain it past return.
// Workers share nothing but the job's own read-only captures.
type Job func(p *motion.Plotter, port ebb.PortInfo) error

// Result is the per-unit outcome of a dispatch run.
type Result struct {
	Port    ebb.PortInfo
	Primary bool
	Status  motion.Status
	Err     error
}

// Dispatcher runs jobs over one or many units.
type Dispatcher struct {
	// Lister enumerates attached boards; ebb.USBLister when nil.
	Lister ebb.Lister

	// Config is the session configuration every worker's plotter gets.
	Config motion.Config

	// Interrupt, when set, is shared by every worker for cooperative
	// cancellation.
	Interrupt *motion.Interrupt

	// NewPlotter builds a worker's plotter.  motion.NewPlotter when nil;
	// tests substitute factories wired to fake boards.
	NewPlotter func() *motion.Plotter
}

func (d *Dispatcher) lister() ebb.Lister {
	if d.Lister != nil {
		return d.Lister
	}
	return ebb.USBLister{}
}

func (d *Dispatcher) newPlotter() *motion.Plotter {
	if d.NewPlotter != nil {
		return d.NewPlotter()
	}
	return motion.NewPlotter()
}

// find matches a port selector against the discovery list, first as a device
// node, then as a nickname.
func find(ports []ebb.PortInfo, sel string) (ebb.PortInfo, bool) {
	if p, ok := ebb.FindPath(ports, sel); ok {
		return p, true
	}
	return ebb.FindNamed(ports, sel)
}

// Run enumerates the attached units, applies the selection, and runs job
// on each selected unit.  It returns one Result per unit run, primary
// first, and the primary's error as the overall error.  Run does not
// return until every secondary has finished.
func (d *Dispatcher) Run(sel Selection, job Job) ([]Result, error) {
	ports, err := d.lister().List()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, ErrNoBoards
	}

	switch sel.Policy {
	case PolicyPort:
		p, ok := find(ports, sel.Port)
		if !ok {
			return nil, ErrPortNotFound{Port: sel.Port}
		}
		r := d.runUnit(p, true, job)
		return []Result{r}, r.Err
	case PolicyAll:
		// fall through to the fan-out below
	default:
		r := d.runUnit(ports[0], true, job)
		return []Result{r}, r.Err
	}

	primary := ports[0]
	if sel.Port != "" {
		if p, ok := find(ports, sel.Port); ok {
			primary = p
		}
	}
	var secondaries []ebb.PortInfo
	for _, p := range ports {
		if p != primary {
			secondaries = append(secondaries, p)
		}
	}

	results := make([]Result, 1+len(secondaries))
	var wg sync.WaitGroup
	for i, p := range secondaries {
		wg.Add(1)
		go func(i int, p ebb.PortInfo) {
			defer wg.Done()
			results[1+i] = d.runUnit(p, false, job)
		}(i, p)
	}
	results[0] = d.runUnit(primary, true, job)
	wg.Wait()
	for _, r := range results[1:] {
		if r.Err != nil {
			log.Printf("dispatch: secondary unit %s failed: %v", r.Port.Path, r.Err)
		}
	}
	return results, results[0].Err
}

// runUnit builds, connects, and drives one worker's plotter end to end.
// Each worker owns its plotter and connection exclusively; only the
// interrupt is shared.
func (d *Dispatcher) runUnit(port ebb.PortInfo, primary bool, job Job) Result {
	res := Result{Port: port, Primary: primary}
	p := d.newPlotter()
	p.Interrupt = d.Interrupt
	if err := p.Configure(d.Config); err != nil {
		res.Err = err
		return res
	}
	if err := p.Connect(port.Path); err != nil {
		res.Status = p.Status()
		res.Err = err
		return res
	}
	if p.CurrentState() != motion.Connected {
		res.Status = p.Status()
		res.Err = fmt.Errorf("dispatch: unit %s did not connect (status %d)", port.Path, res.Status.Stopped)
		return res
	}
	res.Err = job(p, port)
	if derr := p.Disconnect(); derr != nil && res.Err == nil {
		res.Err = derr
	}
	res.Status = p.Status()
	return res
}

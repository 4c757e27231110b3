/*Package ebb speaks the EiBotBoard ASCII protocol: CR-terminated command
lines, "OK"-gated responses, a firmware banner handshake, and a handful of
query verbs that answer with a single data line.

Most usages boil down to:

	d := ebb.NewDevice("/dev/ttyACM0")
	err := d.Open()
	if err != nil {
		// no board, or something that is not an EBB, on that port
	}
	defer d.Close()
	err = d.EnableMotors(1)
	err = d.MoveTimed(1000, 800, 800)
*/
package ebb

import (
	"fmt"
	"strings"
	"time"

	"github.com/plotterlab/axidraw/comm"
)

const (
	// Baud is nominal; the EBB is USB-CDC and ignores the line rate.
	Baud = 9600

	// Banner is the prefix of the version response of a real EBB.
	Banner = "EBB"

	// maxEmptyReads bounds the retries on an empty response line; slow or
	// buffered serial stacks routinely deliver a few empty reads before
	// the board's answer arrives.
	maxEmptyReads = 100

	// openAttempts is how many times the version handshake is tried
	// before the port is declared not-an-EBB.
	openAttempts = 2

	readTimeout = 1 * time.Second
)

// State tracks the connection lifecycle.
type State int

// Connection states.  Opening exists only within Open; observers see
// Closed or Open.
const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

// ErrPortClosed is generated when a command or query is attempted on a
// device that is not open.
var ErrPortClosed = fmt.Errorf("ebb: port not open")

// ErrNoBanner is generated when the open handshake never sees the EBB
// firmware banner.
type ErrNoBanner struct {
	Addr string
	Got  string
}

func (e ErrNoBanner) Error() string {
	return fmt.Sprintf("ebb: %s did not identify as an EBB (version response %q)", e.Addr, e.Got)
}

// ErrBadResponse is generated when a response to a command does not begin
// with the expected OK token.
type ErrBadResponse struct {
	Cmd  string
	Resp string
}

func (e ErrBadResponse) Error() string {
	return fmt.Sprintf("ebb: command %q expected OK, got %q", e.Cmd, e.Resp)
}

// oneLineVerbs answer with exactly one response line; every other query verb
// is followed by a trailing OK line which must be read and discarded.
var oneLineVerbs = map[string]bool{
	"V":  true,
	"I":  true,
	"A":  true,
	"MR": true,
	"PI": true,
	"QM": true,
}

// Device is an exclusive handle on one EiBotBoard.  It is not safe for
// concurrent use; in multi-unit operation each worker owns its own Device.
type Device struct {
	// Addr is the serial port path, e.g. /dev/ttyACM0 or COM4.
	Addr string

	// Maker opens the underlying connection.  Overridable for tests and
	// for transports other than a local serial port.
	Maker comm.CreationFunc

	state     State
	line      *comm.LineConn
	fwVersion string
}

// NewDevice returns a Device for the named port.  Nothing is opened until
// Open is called.
func NewDevice(port string) *Device {
	return &Device{
		Addr:  port,
		Maker: comm.SerialConnMaker(port, Baud, readTimeout),
	}
}

// CurrentState returns the connection state.
func (d *Device) CurrentState() State {
	return d.state
}

// FirmwareVersion returns the version token captured during the open
// handshake, empty when it could not be parsed.
func (d *Device) FirmwareVersion() string {
	return d.fwVersion
}

// Open connects and performs the version handshake.  Only a response
// beginning with the EBB banner is accepted; two attempts are made before
// the port is closed again and a connect failure returned.
func (d *Device) Open() error {
	if d.state == StateOpen {
		return nil
	}
	d.state = StateOpening
	conn, err := comm.OpenBackingOff(d.Maker)
	if err != nil {
		d.state = StateClosed
		return fmt.Errorf("ebb: open %s: %v", d.Addr, err)
	}
	d.line = comm.NewLineConn(conn)
	var banner string
	var lastErr error
	for i := 0; i < openAttempts; i++ {
		resp, rerr := d.roundTrip("V")
		if rerr != nil {
			lastErr = rerr
			continue
		}
		banner = resp
		if strings.HasPrefix(banner, Banner) {
			d.fwVersion = versionToken(banner)
			d.state = StateOpen
			return nil
		}
	}
	d.line.Close()
	d.line = nil
	d.state = StateClosed
	if banner == "" && lastErr != nil {
		// never heard anything at all: a dead port, not a foreign device
		return fmt.Errorf("ebb: open %s: handshake: %v", d.Addr, lastErr)
	}
	return ErrNoBanner{Addr: d.Addr, Got: banner}
}

// Close drops the connection.  Safe to call on an already-closed device.
func (d *Device) Close() error {
	d.state = StateClosed
	d.fwVersion = ""
	if d.line == nil {
		return nil
	}
	err := d.line.Close()
	d.line = nil
	return err
}

// roundTrip sends one line and returns the first non-empty response line,
// retrying empty reads up to maxEmptyReads times.
func (d *Device) roundTrip(cmd string) (string, error) {
	if err := d.line.SendLine(cmd); err != nil {
		return "", err
	}
	return d.readNonEmpty()
}

func (d *Device) readNonEmpty() (string, error) {
	for i := 0; i < maxEmptyReads; i++ {
		resp, err := d.line.RecvLine()
		if err != nil {
			return "", err
		}
		if resp != "" {
			return resp, nil
		}
	}
	return "", fmt.Errorf("ebb: %s gave no response within %d reads", d.Addr, maxEmptyReads)
}

// Command sends a command and requires an OK response.  A non-OK response
// is a protocol error; the session stays open and the caller's error policy
// decides whether to escalate.
func (d *Device) Command(cmd string) error {
	if d.state != StateOpen {
		return ErrPortClosed
	}
	resp, err := d.roundTrip(cmd)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(resp, "OK") {
		return ErrBadResponse{Cmd: cmd, Resp: resp}
	}
	return nil
}

// Query sends a query and returns the first non-empty response line
// verbatim.  For verbs outside the known single-line set, the trailing OK
// line is read and discarded.
func (d *Device) Query(cmd string) (string, error) {
	if d.state != StateOpen {
		return "", ErrPortClosed
	}
	resp, err := d.roundTrip(cmd)
	if err != nil {
		return "", err
	}
	verb := cmd
	if i := strings.IndexByte(cmd, ','); i >= 0 {
		verb = cmd[:i]
	}
	if !oneLineVerbs[strings.ToUpper(verb)] {
		// trailing OK; discarded, not validated
		d.readNonEmpty()
	}
	return resp, nil
}

// send writes a line with no read at all, for verbs that never answer.
func (d *Device) send(cmd string) error {
	if d.state != StateOpen {
		return ErrPortClosed
	}
	return d.line.SendLine(cmd)
}

package ebb

import (
	"fmt"
	"strconv"
	"strings"
)

// Firmware thresholds for version-gated verbs.
const (
	// LMMinVersion is the first firmware with the rate/acceleration
	// parameterized LM move.
	LMMinVersion = "2.7.0"

	// NicknameMinVersion is the first firmware with QT/ST nickname
	// storage.
	NicknameMinVersion = "2.5.5"
)

// ErrVersionGated is generated when a verb requires newer firmware than the
// board carries.
type ErrVersionGated struct {
	Verb     string
	Required string
	Have     string
}

func (e ErrVersionGated) Error() string {
	return fmt.Sprintf("ebb: %s requires firmware >= %s, board has %q", e.Verb, e.Required, e.Have)
}

// QueryPenUp reports whether the pen is in the up position, per the board.
func (d *Device) QueryPenUp() (bool, error) {
	resp, err := d.Query("QP")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(resp) == "1", nil
}

// QueryButton reports whether the pause button has been pressed since the
// last QB query.  The press latch clears on read.
func (d *Device) QueryButton() (bool, error) {
	resp, err := d.Query("QB")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(resp) == "1", nil
}

// QueryVoltage returns the current-setpoint and supply-voltage ADC readings.
func (d *Device) QueryVoltage() (current, voltage int, err error) {
	resp, err := d.Query("QC")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(strings.TrimSpace(resp), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ebb: QC expected two fields, got %q", resp)
	}
	current, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	voltage, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return current, voltage, nil
}

// QuerySteps returns the global step positions of the two motors.
func (d *Device) QuerySteps() (m1, m2 int64, err error) {
	resp, err := d.Query("QS")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(strings.TrimSpace(resp), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ebb: QS expected two fields, got %q", resp)
	}
	m1, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	m2, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return m1, m2, nil
}

// QueryVariable reads the auxiliary 8-bit variable (QL).
func (d *Device) QueryVariable() (uint8, error) {
	resp, err := d.Query("QL")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

// SetVariable stores the auxiliary 8-bit variable (SL).
func (d *Device) SetVariable(v uint8) error {
	return d.Command(fmt.Sprintf("SL,%d", v))
}

// Nickname returns the user-assigned board name (QT), empty when unset.
func (d *Device) Nickname() (string, error) {
	if d.MinVersion(NicknameMinVersion) == VersionTooOld {
		return "", ErrVersionGated{Verb: "QT", Required: NicknameMinVersion, Have: d.fwVersion}
	}
	resp, err := d.Query("QT")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// SetNickname stores a user-assigned board name (ST).
func (d *Device) SetNickname(name string) error {
	if d.MinVersion(NicknameMinVersion) == VersionTooOld {
		return ErrVersionGated{Verb: "ST", Required: NicknameMinVersion, Have: d.fwVersion}
	}
	return d.Command(fmt.Sprintf("ST,%s", name))
}

// EnableMotors energizes both steppers at the given microstep resolution,
// 1 (sixteenth stepping) through 5 (full stepping).
func (d *Device) EnableMotors(resolution int) error {
	if resolution < 0 || resolution > 5 {
		return fmt.Errorf("ebb: microstep resolution %d out of range 0-5", resolution)
	}
	return d.Command(fmt.Sprintf("EM,%d,%d", resolution, resolution))
}

// DisableMotors de-energizes both steppers.
func (d *Device) DisableMotors() error {
	return d.Command("EM,0,0")
}

// SetPen commands the pen servo up or down, with delayMS milliseconds for
// the motion queue to pause while the servo travels.
func (d *Device) SetPen(up bool, delayMS int) error {
	state := 0
	if up {
		state = 1
	}
	if delayMS < 0 {
		delayMS = 0
	}
	return d.Command(fmt.Sprintf("SP,%d,%d", state, delayMS))
}

// TogglePen flips the pen state (TP).
func (d *Device) TogglePen() error {
	return d.Command("TP")
}

// MoveTimed issues a constant-rate move over durMS milliseconds of steps1 on
// motor 1 and steps2 on motor 2 (SM).
func (d *Device) MoveTimed(durMS int, steps1, steps2 int) error {
	return d.Command(fmt.Sprintf("SM,%d,%d,%d", durMS, steps1, steps2))
}

// MoveMixed issues a constant-rate move over durMS milliseconds given
// native-axis deltas: the board applies A = X+Y, B = X-Y mixing itself (XM).
func (d *Device) MoveMixed(durMS int, deltaA, deltaB int) error {
	return d.Command(fmt.Sprintf("XM,%d,%d,%d", durMS, deltaA, deltaB))
}

// MoveLowLevel issues a rate/acceleration parameterized move (LM), gated on
// firmware 2.7.0.  An unknown version does not block: the caller decided to
// use LM, only a known-old board refuses.
func (d *Device) MoveLowLevel(rate1 int64, steps1 int, delta1 int64, rate2 int64, steps2 int, delta2 int64) error {
	if d.MinVersion(LMMinVersion) == VersionTooOld {
		return ErrVersionGated{Verb: "LM", Required: LMMinVersion, Have: d.fwVersion}
	}
	return d.Command(fmt.Sprintf("LM,%d,%d,%d,%d,%d,%d", rate1, steps1, delta1, rate2, steps2, delta2))
}

// Reboot restarts the board (RB).  The connection drops mid-reply, so
// errors on this command are deliberately ignored.
func (d *Device) Reboot() {
	_ = d.Command("RB")
}

// EnterBootloader drops the board into its bootloader (BL).  Fire and
// forget: the firmware is gone before any response could be written.
func (d *Device) EnterBootloader() error {
	return d.send("BL")
}

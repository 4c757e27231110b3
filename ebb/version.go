package ebb

import (
	"strconv"
	"strings"
)

// VersionCheck is the tri-state answer of a firmware version gate.  Unknown
// means the version string could not be parsed; callers use it to skip
// version-gated behavior silently rather than fail the session.
type VersionCheck int

const (
	// VersionUnknown means the installed version could not be determined.
	VersionUnknown VersionCheck = iota
	// VersionOK means the installed version meets the requirement.
	VersionOK
	// VersionTooOld means the installed version is below the requirement.
	VersionTooOld
)

// versionToken extracts the dotted version from a banner such as
// "EBBv13_and_above EB Firmware Version 2.5.3".  The last whitespace field
// is the version on every firmware generation.
func versionToken(banner string) string {
	fields := strings.Fields(banner)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// parseDotted splits a dotted version into integer parts; ok is false when
// any part fails to parse.
func parseDotted(v string) ([]int, bool) {
	if v == "" {
		return nil, false
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// CompareVersion checks installed against required using dotted-integer
// precedence, never lexical string order ("2.10.0" is newer than "2.9.9").
// Missing trailing parts are treated as zero.
func CompareVersion(installed, required string) VersionCheck {
	have, ok := parseDotted(installed)
	if !ok {
		return VersionUnknown
	}
	want, ok := parseDotted(required)
	if !ok {
		return VersionUnknown
	}
	n := len(have)
	if len(want) > n {
		n = len(want)
	}
	for i := 0; i < n; i++ {
		h, w := 0, 0
		if i < len(have) {
			h = have[i]
		}
		if i < len(want) {
			w = want[i]
		}
		if h > w {
			return VersionOK
		}
		if h < w {
			return VersionTooOld
		}
	}
	return VersionOK
}

// MinVersion queries the firmware version and gates it against required.
// The version captured at open time is reused; a fresh V query happens only
// when the cache is empty.
func (d *Device) MinVersion(required string) VersionCheck {
	v := d.fwVersion
	if v == "" && d.state == StateOpen {
		banner, err := d.Query("V")
		if err != nil {
			return VersionUnknown
		}
		v = versionToken(banner)
		d.fwVersion = v
	}
	return CompareVersion(v, required)
}

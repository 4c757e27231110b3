package ebb

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/gousb"
)

// USB identity of the EiBotBoard (Microchip VID, SchmalzHaus EBB PID).
const (
	VendorID  = 0x04d8
	ProductID = 0xfd92
)

// PortInfo describes one attached board as discovered, before any
// connection is made.
type PortInfo struct {
	// Path is the serial device node, e.g. /dev/ttyACM0.
	Path string

	// Description is the human-readable identity, built from the USB
	// product string.
	Description string

	// SerialNumber is the USB iSerial string.
	SerialNumber string

	// Nickname is the user-assigned name when one could be recovered
	// from the descriptors without opening the port.
	Nickname string
}

// Lister enumerates attached boards.  The USB-backed implementation is the
// default; tests and the dispatcher substitute fakes.
type Lister interface {
	List() ([]PortInfo, error)
}

// USBLister enumerates EiBotBoards over libusb.
type USBLister struct{}

// List finds every attached EBB by vendor/product ID, reads its descriptor
// strings, and pairs each with a CDC-ACM device node.  Descriptors and
// nodes are paired in enumeration order; Linux assigns ttyACM numbers in
// the same order the devices appear on the bus.
func (USBLister) List() ([]PortInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(VendorID) && desc.Product == gousb.ID(ProductID)
	})
	for _, d := range devs {
		defer d.Close()
	}
	if err != nil {
		// OpenDevices returns the devices it could open along with the
		// first error; a permissions problem on one board should not
		// hide the others
		if len(devs) == 0 {
			return nil, err
		}
	}
	nodes, _ := filepath.Glob("/dev/ttyACM*")
	sort.Strings(nodes)
	infos := make([]PortInfo, 0, len(devs))
	for i, d := range devs {
		info := PortInfo{}
		if i < len(nodes) {
			info.Path = nodes[i]
		}
		product, _ := d.Product()
		serial, _ := d.SerialNumber()
		if product == "" {
			product = "EiBotBoard"
		}
		info.Description = product
		info.SerialNumber = serial
		info.Nickname = nicknameFromDescriptors(info)
		infos = append(infos, info)
	}
	return infos, nil
}

// MatchRule decides whether a discovered port carries the given nickname.
// Several historical encodings are in the field; the rule list is
// configurable so retired encodings can be dropped without code changes.
type MatchRule func(info PortInfo, nick string) bool

// MatchDescriptionPrefix matches "<nick> - EiBotBoard", the oldest naming
// scheme, where the name was prepended to the USB product string.
func MatchDescriptionPrefix(info PortInfo, nick string) bool {
	return strings.HasPrefix(info.Description, nick+" - EiBotBoard")
}

// MatchParenthesized matches "EiBotBoard (<nick>)", the scheme used after
// the product string ordering flipped.
func MatchParenthesized(info PortInfo, nick string) bool {
	return strings.Contains(info.Description, fmt.Sprintf("EiBotBoard (%s)", nick))
}

// MatchSerialPrefix matches a nickname stored at the front of the USB
// iSerial string, the scheme current firmware uses.
func MatchSerialPrefix(info PortInfo, nick string) bool {
	return nick != "" && strings.HasPrefix(info.SerialNumber, nick)
}

// DefaultNicknameRules carries all historical encodings, newest first.
var DefaultNicknameRules = []MatchRule{
	MatchSerialPrefix,
	MatchParenthesized,
	MatchDescriptionPrefix,
}

// nicknameFromDescriptors recovers a stored nickname from descriptor
// strings where the encoding makes that possible.
func nicknameFromDescriptors(info PortInfo) string {
	if i := strings.Index(info.Description, " - EiBotBoard"); i > 0 {
		return info.Description[:i]
	}
	if i := strings.Index(info.Description, "EiBotBoard ("); i >= 0 {
		rest := info.Description[i+len("EiBotBoard ("):]
		if j := strings.IndexByte(rest, ')'); j > 0 {
			return rest[:j]
		}
	}
	return ""
}

// FindNamed returns the first port matching nick under any of the given
// rules (DefaultNicknameRules when none are passed).
func FindNamed(ports []PortInfo, nick string, rules ...MatchRule) (PortInfo, bool) {
	if len(rules) == 0 {
		rules = DefaultNicknameRules
	}
	for _, p := range ports {
		for _, rule := range rules {
			if rule(p, nick) {
				return p, true
			}
		}
	}
	return PortInfo{}, false
}

// FindFirst returns the first discovered port.
func FindFirst(ports []PortInfo) (PortInfo, bool) {
	if len(ports) == 0 {
		return PortInfo{}, false
	}
	return ports[0], true
}

// FindPath returns the port whose device node matches path exactly.
func FindPath(ports []PortInfo, path string) (PortInfo, bool) {
	for _, p := range ports {
		if p.Path == path {
			return p, true
		}
	}
	return PortInfo{}, false
}

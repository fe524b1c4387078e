// Package hotplug reports kernel tty device events over netlink, without cgo.
//
// It is used to notice a USB serial adapter being unplugged while a session
// still holds the port open.
package hotplug

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Actions of interest.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemTTY is the kernel subsystem of serial device nodes.
const SubsystemTTY = "tty"

// Event is one kernel device event.
type Event struct {
	Action    string
	KObj      string // kernel object path, /devices/...
	Subsystem string
	DevName   string // node name relative to /dev, e.g. "ttyACM0"
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" if it has none.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	return filepath.Join("/dev", e.DevName)
}

// RemovalOf reports whether e removes the device node at path. Symlinks such
// as /dev/serial/by-id/... must be resolved by the caller before the device
// disappears.
func (e Event) RemovalOf(path string) bool {
	return e.Action == ActionRemove && e.Node() != "" && e.Node() == filepath.Clean(path)
}

// ParseUEvent parses "ACTION@KOBJ\0KEY=VALUE\0...". Messages relayed by
// udevd carry a binary "libudev" header that is skipped. Returns nil for
// anything that is not a uevent.
func ParseUEvent(data []byte) *Event {
	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipUdevHeader(data)
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}

	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return nil
	}

	ev := &Event{Action: action, KObj: kobj, Env: make(map[string]string)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev
}

func skipUdevHeader(data []byte) []byte {
	for i := 0; i < len(data)-1; i++ {
		if data[i] != 0 {
			continue
		}
		rest := data[i+1:]
		first := rest
		if end := bytes.IndexByte(rest, 0); end >= 0 {
			first = rest[:end]
		}
		if idx := bytes.IndexByte(first, '@'); idx > 0 && idx < 20 {
			return rest
		}
	}
	return data
}

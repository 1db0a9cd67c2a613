// Package transport wraps the serial port library behind the small set of
// capabilities the instrument layer needs: port enumeration, lookup by name,
// descriptor duplication and opening a port for blocking reads and writes.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrNoSuchPort is returned by PortByName when the name cannot be resolved.
var ErrNoSuchPort = errors.New("no such serial port")

// Port is an open serial endpoint. go.bug.st/serial.Port satisfies it.
//
// Read follows the go.bug.st/serial contract: once a read timeout is set, a
// read that sees no data within the timeout returns (0, nil).
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

// Kind is the connection medium of a serial port.
type Kind int

const (
	KindUnknown Kind = iota
	KindNative
	KindUSB
	KindBluetooth
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindUSB:
		return "usb"
	case KindBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// PortDescriptor describes one discovered serial endpoint.
type PortDescriptor struct {
	Name         string
	Kind         Kind
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Product      string

	// IdentityErr is set when the port is USB but the operating system
	// reported a vendor/product pair that could not be parsed.
	IdentityErr error
}

// USBIdentity returns the vendor and product identifiers of a USB port.
func (d *PortDescriptor) USBIdentity() (vid, pid uint16, err error) {
	if d.Kind != KindUSB {
		return 0, 0, fmt.Errorf("port %s is not a USB port (%s)", d.Name, d.Kind)
	}
	if d.IdentityErr != nil {
		return 0, 0, d.IdentityErr
	}
	return d.VendorID, d.ProductID, nil
}

func (d *PortDescriptor) String() string {
	if d.Kind == KindUSB && d.IdentityErr == nil {
		return fmt.Sprintf("%s (%s %04x:%04x)", d.Name, d.Kind, d.VendorID, d.ProductID)
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Kind)
}

// PortList is the result of one enumeration. It must be released once the
// caller is done with it; Release is safe to call more than once.
type PortList struct {
	ports   []*PortDescriptor
	release func()
	once    sync.Once
}

// NewPortList wraps ports; release, when non-nil, runs on the first Release.
func NewPortList(ports []*PortDescriptor, release func()) *PortList {
	return &PortList{ports: ports, release: release}
}

// Ports returns the enumerated ports in enumeration order. The slice is
// empty after Release.
func (l *PortList) Ports() []*PortDescriptor {
	if l == nil {
		return nil
	}
	return l.ports
}

// Release drops the list.
func (l *PortList) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.ports = nil
		if l.release != nil {
			l.release()
		}
	})
}

// Transport is the capability set consumed by the device layer.
type Transport interface {
	// ListPorts enumerates every serial port visible to the system.
	ListPorts() (*PortList, error)
	// PortByName resolves a single port by its system name.
	PortByName(name string) (*PortDescriptor, error)
	// CopyPort duplicates a descriptor so it outlives the list it came from.
	CopyPort(d *PortDescriptor) (*PortDescriptor, error)
	// Open opens the port for reading and writing.
	Open(d *PortDescriptor, mode *serial.Mode) (Port, error)
}

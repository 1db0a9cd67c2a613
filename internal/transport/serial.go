package transport

import (
	"fmt"
	"path/filepath"
	"strconv"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialTransport is the Transport backed by go.bug.st/serial and its
// enumerator package.
type SerialTransport struct {
	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
	resolve   func(name string) (string, error)
}

// NewSerialTransport returns a transport talking to the real serial ports.
func NewSerialTransport() *SerialTransport {
	return &SerialTransport{
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
		resolve:   filepath.EvalSymlinks,
	}
}

// ListPorts enumerates the system's serial ports.
func (t *SerialTransport) ListPorts() (*PortList, error) {
	details, err := t.listPorts()
	if err != nil {
		return nil, err
	}
	ports := make([]*PortDescriptor, 0, len(details))
	for _, d := range details {
		ports = append(ports, descriptorFromDetails(d))
	}
	return NewPortList(ports, nil), nil
}

// PortByName looks the port up in the enumeration. Names that are symlinks
// (for example /dev/serial/by-id entries) are matched by their target too.
func (t *SerialTransport) PortByName(name string) (*PortDescriptor, error) {
	list, err := t.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	defer list.Release()

	candidates := []string{name}
	if target, err := t.resolve(name); err == nil && target != name {
		candidates = append(candidates, target)
	}

	for _, candidate := range candidates {
		for _, p := range list.Ports() {
			if p.Name == candidate {
				found := *p
				found.Name = name
				return &found, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchPort, name)
}

// CopyPort duplicates the descriptor.
func (t *SerialTransport) CopyPort(d *PortDescriptor) (*PortDescriptor, error) {
	if d == nil {
		return nil, fmt.Errorf("copy port: nil descriptor")
	}
	dup := *d
	return &dup, nil
}

// Open opens the named port with the given line settings.
func (t *SerialTransport) Open(d *PortDescriptor, mode *serial.Mode) (Port, error) {
	if mode == nil {
		var err error
		if mode, err = (PortOptions{}).SerialMode(); err != nil {
			return nil, err
		}
	}
	return t.openPort(d.Name, mode)
}

func descriptorFromDetails(d *enumerator.PortDetails) *PortDescriptor {
	desc := &PortDescriptor{
		Name:         d.Name,
		Kind:         KindNative,
		SerialNumber: d.SerialNumber,
		Product:      d.Product,
	}
	if !d.IsUSB {
		return desc
	}

	desc.Kind = KindUSB
	vid, err := parseUSBID(d.VID)
	if err != nil {
		desc.IdentityErr = fmt.Errorf("vendor id: %w", err)
		return desc
	}
	pid, err := parseUSBID(d.PID)
	if err != nil {
		desc.IdentityErr = fmt.Errorf("product id: %w", err)
		return desc
	}
	desc.VendorID, desc.ProductID = vid, pid
	return desc
}

// parseUSBID parses the four hex digit identifiers the enumerator reports.
func parseUSBID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

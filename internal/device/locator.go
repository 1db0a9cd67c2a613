// Package device finds the tinySA4 among the system's serial ports and owns
// the open connection to it.
package device

import (
	"fmt"

	"github.com/banshee-data/tinysa/internal/monitoring"
	"github.com/banshee-data/tinysa/internal/transport"
)

// Identity is a USB vendor/product pair.
type Identity struct {
	VendorID  uint16
	ProductID uint16
}

// TinySA4 is the identity the instrument enumerates with.
var TinySA4 = Identity{VendorID: 0x0483, ProductID: 0x5740}

func (id Identity) String() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// Locate finds the port of the instrument with the given identity.
//
// With a port name, only that port is considered: a name the transport
// cannot resolve is ErrPortNotFound, while an existing port that is not the
// instrument yields (nil, nil). Without a name, ports are enumerated and the
// first USB port whose identity matches is returned; no match yields
// (nil, nil).
func Locate(t transport.Transport, id Identity, portName string) (*transport.PortDescriptor, error) {
	if portName != "" {
		return locateByName(t, id, portName)
	}
	return locateByEnumeration(t, id)
}

func locateByName(t transport.Transport, id Identity, portName string) (*transport.PortDescriptor, error) {
	port, err := t.PortByName(portName)
	if err != nil {
		return nil, portError(ErrPortNotFound, portName, err)
	}

	ok, err := Matches(port, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		monitoring.Debugf("port %s is not a %s device", port, id)
		return nil, nil
	}
	return port, nil
}

func locateByEnumeration(t transport.Transport, id Identity) (*transport.PortDescriptor, error) {
	list, err := t.ListPorts()
	if err != nil {
		return nil, portError(ErrEnumerationFailed, "", err)
	}
	defer list.Release()

	for _, port := range list.Ports() {
		ok, err := Matches(port, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		found, err := t.CopyPort(port)
		if err != nil {
			return nil, portError(ErrPortAllocationFailed, port.Name, err)
		}
		return found, nil
	}
	return nil, nil
}

// Matches reports whether port is a USB port with exactly the given identity.
// Non-USB ports never match.
func Matches(port *transport.PortDescriptor, id Identity) (bool, error) {
	if port.Kind != transport.KindUSB {
		return false, nil
	}
	vid, pid, err := port.USBIdentity()
	if err != nil {
		return false, portError(ErrIdentityUnavailable, port.Name, err)
	}
	return vid == id.VendorID && pid == id.ProductID, nil
}

package device

import "errors"

// Error kinds. Every failure returned by this package matches exactly one of
// them through errors.Is; use errors.As with *PortError to get the port name.
var (
	ErrPortNotFound         = errors.New("could not find port")
	ErrEnumerationFailed    = errors.New("could not enumerate devices")
	ErrPortAllocationFailed = errors.New("could not allocate device")
	ErrIdentityUnavailable  = errors.New("could not obtain device VID and PID")
	ErrDeviceNotFound       = errors.New("could not find tinySA4 device")
	ErrOpenFailed           = errors.New("could not open tinySA4 device")
	ErrWriteFailed          = errors.New("could not write to device")
	ErrReadFailed           = errors.New("could not read from device")
	ErrSessionClosed        = errors.New("device session is closed")
)

// PortError carries the error kind, the port involved (if any) and the
// underlying transport error (if any).
type PortError struct {
	Kind error
	Port string
	Err  error
}

func (e *PortError) Error() string {
	msg := e.Kind.Error()
	if e.Port != "" {
		msg += " at port " + e.Port
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PortError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func portError(kind error, port string, err error) error {
	return &PortError{Kind: kind, Port: port, Err: err}
}

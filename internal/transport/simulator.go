package transport

import (
	"fmt"
	"strings"
)

// SimulatorPortName is the name the simulated instrument enumerates under.
const SimulatorPortName = "sim://tinysa4"

// NewSimulator returns a FakeTransport exposing one USB port with the given
// identity. Opening it yields a port that echoes commands and answers a few
// of them the way the instrument does, ending each reply with its prompt.
// It backs the console's -dev mode.
func NewSimulator(vid, pid uint16) *FakeTransport {
	return &FakeTransport{
		Ports: []*PortDescriptor{{
			Name:      SimulatorPortName,
			Kind:      KindUSB,
			VendorID:  vid,
			ProductID: pid,
			Product:   "tinySA4 (simulated)",
		}},
		NewPort: func(*PortDescriptor) Port {
			p := NewTestablePort()
			p.Responder = simulatedReply
			return p
		},
	}
}

func simulatedReply(command string) string {
	const prompt = "ch> "
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return prompt
	}

	switch fields[0] {
	case "version":
		return "tinySA4_v1.4-simulated\r\nHW Version:V0.4.5.1\r\n" + prompt
	case "frequencies":
		var b strings.Builder
		for i := 0; i < 11; i++ {
			fmt.Fprintf(&b, "%d\r\n", 100000000+i*10000000)
		}
		return b.String() + prompt
	case "data":
		var b strings.Builder
		for i := 0; i < 11; i++ {
			level := -90.0 + float64(i%5)
			if i == 6 {
				level = -20.5
			}
			fmt.Fprintf(&b, "%.6e\r\n", level)
		}
		return b.String() + prompt
	case "help":
		return "Commands: version frequencies data sweep help\r\n" + prompt
	case "sweep":
		return prompt
	default:
		return fields[0] + "?\r\n" + prompt
	}
}

package midi

import (
	"errors"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortsTimeout is returned when the MIDI backend doesn't answer
var ErrPortsTimeout = errors.New("midi: timed out listing ports")

// ErrNoPort is returned when no output port matches
var ErrNoPort = errors.New("midi: no matching output port")

// portScanTimeout bounds a port listing (CoreMIDI can hang)
const portScanTimeout = 3 * time.Second

// outPorts lists output ports, giving up after timeout
func outPorts(timeout time.Duration) ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrPortsTimeout
	}
}

// OutPortNames returns the names of every MIDI output port
func OutPortNames() ([]string, error) {
	outs, err := outPorts(portScanTimeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names, nil
}

// findOutPort picks a port by case-insensitive substring. An empty name
// takes the first port.
func findOutPort(outs []drivers.Out, name string) (drivers.Out, error) {
	if len(outs) == 0 {
		return nil, ErrNoPort
	}
	if name == "" {
		return outs[0], nil
	}
	want := strings.ToLower(name)
	for _, p := range outs {
		if strings.Contains(strings.ToLower(p.String()), want) {
			return p, nil
		}
	}
	return nil, ErrNoPort
}

// openPort finds and opens an output port for sending
func openPort(name string) (func(gomidi.Message) error, error) {
	outs, err := outPorts(portScanTimeout)
	if err != nil {
		return nil, err
	}
	port, err := findOutPort(outs, name)
	if err != nil {
		return nil, err
	}
	return gomidi.SendTo(port)
}

// Close releases the MIDI driver
func Close() {
	gomidi.CloseDriver()
}

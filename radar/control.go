package radar

import (
	"io"
	"log/slog"
	"os"

	"github.com/llhlol/IWR1443-data-collection/serial"
)

// ControlBaudRate is the IWR1443 CLI UART speed.
const ControlBaudRate = 115200

// ControlPortDeps holds runtime dependencies for the control endpoint.
type ControlPortDeps struct {
	Reactor *serial.Reactor
	Console io.Writer // device CLI echo destination; nil means stdout
	Logger  *slog.Logger
}

// ControlPort is the device CLI endpoint: operator commands are queued
// out, and everything the device prints back is copied verbatim to the
// operator console.
type ControlPort struct {
	port    *serial.Port
	console io.Writer
	logger  *slog.Logger
}

// NewControlPort creates the control endpoint.
func NewControlPort(deps ControlPortDeps) *ControlPort {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "control-port")
	}
	console := deps.Console
	if console == nil {
		console = os.Stdout
	}

	c := &ControlPort{
		console: console,
		logger:  logger,
	}
	c.port = serial.NewPort(serial.PortDeps{
		Reactor: deps.Reactor,
		OnRead:  c.echo,
		Logger:  logger,
	})
	return c
}

// Initialize opens the CLI UART at the fixed control baud rate.
func (c *ControlPort) Initialize(portName string) error {
	return c.port.Initialize(portName, ControlBaudRate)
}

// Port exposes the underlying endpoint for reactor registration.
func (c *ControlPort) Port() *serial.Port {
	return c.port
}

// Close releases the underlying endpoint.
func (c *ControlPort) Close() error {
	return c.port.Close()
}

// SendCommand queues one CLI line for transmission, appending the
// newline the device expects.
func (c *ControlPort) SendCommand(command string) {
	c.port.AsyncWrite(append([]byte(command), '\n'))
}

// echo copies device output to the operator console verbatim. Console
// failures are logged and ignored; losing an echo must not disturb I/O.
func (c *ControlPort) echo(p []byte) {
	if _, err := c.console.Write(p); err != nil {
		c.logger.Warn("console write failed", "error", err)
	}
}

package gmc

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sergev/geiger/adapter"
	"github.com/sergev/geiger/config"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// USB serial bridge of the GMC-300/320/500 series
const (
	VendorID  = 0x1a86 // QinHeng Electronics
	ProductID = 0x7523 // CH340 serial converter
)

func init() {
	adapter.RegisterAdapter(VendorID, ProductID, NewClient)
}

// Open opens a serial port at the given speed and read timeout and returns
// a client owning it. The port is closed by Client.Close.
func Open(name string, baudRate int, timeout time.Duration, opts ...Option) (*Client, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	err = port.SetReadTimeout(timeout)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	c := New(port, opts...)
	c.closer = port
	return c, nil
}

// NewClient creates a GMC client using the provided port details and the
// loaded configuration. It silences a heartbeat left running by an earlier
// session and checks that a counter answers.
// Returns a Counter interface implementation
func NewClient(portDetails *enumerator.PortDetails) (adapter.Counter, error) {
	logger := log.Logger.With().Str("port", portDetails.Name).Logger()
	c, err := Open(portDetails.Name, config.BaudRate, config.ReadTimeout,
		WithLogger(logger),
		WithLocation(config.Location),
		WithStrictDateTime(config.StrictDateTime),
		WithMaxPageRetries(config.MaxPageRetries),
		WithPageSize(config.PageSize),
		WithUserDataSize(config.UserDataSize),
		WithPageProgress(printPageProgress),
	)
	if err != nil {
		return nil, err
	}
	c.usbSerial = portDetails.SerialNumber

	err = c.HeartbeatOff()
	if err == nil {
		err = c.ch.ResetInputBuffer()
	}
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to reset counter on %s: %w", portDetails.Name, err)
	}

	version, err := c.Version()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("no counter on %s: %w", portDetails.Name, err)
	}
	logger.Info().Str("version", version).Msg("counter found")
	return c, nil
}

// printPageProgress shows page download progress on stderr
func printPageProgress(page, total int) {
	if page > 1 {
		fmt.Fprintf(os.Stderr, "\r")
	}
	fmt.Fprintf(os.Stderr, "Reading page %d of %d...", page, total)
}

package gmc

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sergev/geiger/protocol"
)

// Serial returns the counter serial number as lowercase hex.
func (c *Client) Serial() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetSerial, 7)
	if err != nil {
		return "", fmt.Errorf("failed to get serial number: %w", err)
	}
	return hex.EncodeToString(reply), nil
}

// Version returns the model and firmware version string, e.g. "GMC-300Re 4.54".
func (c *Client) Version() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetVersion, 14)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return string(reply), nil
}

// Voltage returns the battery voltage in volts.
func (c *Client) Voltage() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetVoltage, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to get voltage: %w", err)
	}
	return float64(reply[0]) / 10.0, nil
}

// CPM returns the current counts per minute.
func (c *Client) CPM() (protocol.CountRate, error) {
	return c.countRate(protocol.GetCPM)
}

// CPS returns the current counts per second.
func (c *Client) CPS() (protocol.CountRate, error) {
	return c.countRate(protocol.GetCPS)
}

func (c *Client) countRate(cmd protocol.Command) (protocol.CountRate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(cmd, protocol.CountRateSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get count rate: %w", err)
	}
	rate, err := protocol.DecodeCountRate(reply)
	if err != nil {
		return 0, fmt.Errorf("failed to decode count rate: %w", err)
	}
	return rate, nil
}

// DateTime returns the counter clock. The reply is six date/time bytes
// followed by 0xAA; the terminator is only checked in strict mode.
func (c *Client) DateTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetDateTime, protocol.TimestampSize+1)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get date and time: %w", err)
	}
	err = c.checkTerminator(reply[protocol.TimestampSize])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get date and time: %w", err)
	}
	return protocol.DecodeTimestamp(reply[:protocol.TimestampSize], c.loc)
}

// Config returns the raw 256-byte configuration blob.
// Never exercised against hardware.
func (c *Client) Config() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetConfig, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return reply, nil
}

// Temperature returns the internal temperature in degrees Celsius.
// Reply: integer part, tenths, sign (non-zero is negative), 0xAA.
func (c *Client) Temperature() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(protocol.GetTemperature, 4)
	if err != nil {
		return 0, fmt.Errorf("failed to get temperature: %w", err)
	}
	err = c.checkTerminator(reply[3])
	if err != nil {
		return 0, fmt.Errorf("failed to get temperature: %w", err)
	}
	celsius := float64(reply[0]) + float64(reply[1])/10.0
	if reply[2] != 0 {
		celsius = -celsius
	}
	return celsius, nil
}

// SetDateTime sets the counter clock to t, converted to the client time zone.
func (c *Client) SetDateTime(t time.Time) error {
	cmd, err := protocol.SetDateTime(t.In(c.loc))
	if err != nil {
		return fmt.Errorf("failed to set date and time: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.query(cmd, 1)
	if err != nil {
		return fmt.Errorf("failed to set date and time: %w", err)
	}
	if reply[0] != replyTerminator {
		return fmt.Errorf("failed to set date and time: %w (0x%02x)", ErrNotAcknowledged, reply[0])
	}
	return nil
}

func (c *Client) checkTerminator(b byte) error {
	if b == replyTerminator {
		return nil
	}
	if c.strictDateTime {
		return fmt.Errorf("%w: 0x%02x, expected 0x%02x", ErrBadTerminator, b, replyTerminator)
	}
	c.log.Debug().Uint8("terminator", b).Msg("ignoring bad reply terminator")
	return nil
}

// PowerOn turns the counter on.
func (c *Client) PowerOn() error {
	return c.exec(protocol.PowerOn)
}

// PowerOff turns the counter off.
func (c *Client) PowerOff() error {
	return c.exec(protocol.PowerOff)
}

// Reboot restarts the counter.
func (c *Client) Reboot() error {
	return c.exec(protocol.Reboot)
}

// FactoryReset restores factory settings. Untested.
func (c *Client) FactoryReset() error {
	return c.exec(protocol.FactoryReset)
}

// HeartbeatOn makes the counter push a CPS word every second.
// Prefer Stream, which guarantees the matching HeartbeatOff.
func (c *Client) HeartbeatOn() error {
	return c.exec(protocol.HeartbeatOn)
}

// HeartbeatOff stops the CPS push.
func (c *Client) HeartbeatOff() error {
	return c.exec(protocol.HeartbeatOff)
}

// EraseConfig erases the counter configuration. Untested.
func (c *Client) EraseConfig() error {
	return c.exec(protocol.EraseConfig)
}

// UpdateConfig makes the counter reload its configuration. Untested.
func (c *Client) UpdateConfig() error {
	return c.exec(protocol.UpdateConfig)
}

// PressKey simulates a press of key S1..S4 (index 0..3).
func (c *Client) PressKey(index int) error {
	cmd, err := protocol.KeyPress(index)
	if err != nil {
		return err
	}
	return c.exec(cmd)
}

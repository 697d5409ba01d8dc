package gmc

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

// PrintStatus prints counter identity, battery, clock and count rates to stdout.
// Every query is attempted; a failing one is reported and the rest go on.
func (c *Client) PrintStatus() {
	warn := color.New(color.FgYellow)

	version, err := c.Version()
	if err != nil {
		warn.Printf("Version: %v\n", err)
	} else {
		fmt.Printf("Counter Model: %s\n", version)
	}
	if c.usbSerial != "" {
		fmt.Printf("USB Serial Number: %s\n", c.usbSerial)
	}

	serial, err := c.Serial()
	if err != nil {
		warn.Printf("Serial Number: %v\n", err)
	} else {
		fmt.Printf("Serial Number: %s\n", serial)
	}

	volts, err := c.Voltage()
	if err != nil {
		warn.Printf("Battery: %v\n", err)
	} else {
		fmt.Printf("Battery: %.1f V\n", volts)
	}

	now, err := c.DateTime()
	if err != nil {
		warn.Printf("Clock: %v\n", err)
	} else {
		d := now.Sub(time.Now()).Round(time.Second)
		fmt.Printf("Clock: %s (%s from host)\n", now.Format(time.DateTime), d)
	}

	cpm, err := c.CPM()
	if err != nil {
		warn.Printf("CPM: %v\n", err)
	} else {
		fmt.Printf("CPM: %d\n", cpm)
	}

	cps, err := c.CPS()
	if err != nil {
		warn.Printf("CPS: %v\n", err)
	} else {
		fmt.Printf("CPS: %d\n", cps)
	}
}

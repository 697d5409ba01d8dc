package adapter

import (
	"context"
	"iter"
	"time"

	"github.com/sergev/geiger/history"
	"github.com/sergev/geiger/protocol"
)

// Counter defines the interface for radiation counters reachable over a USB serial bridge
type Counter interface {
	// PrintStatus prints counter status information to stdout
	PrintStatus()

	// Rates streams count samples, Unbounded (negative) for no limit
	Rates(ctx context.Context, count int) iter.Seq2[protocol.CountRate, error]

	// ReadHistory downloads the raw history region
	ReadHistory() ([]byte, error)

	// History downloads and decodes the history region
	History(opts ...history.Option) (iter.Seq[history.Sample], error)

	DateTime() (time.Time, error)
	SetDateTime(t time.Time) error
	PowerOn() error
	PowerOff() error
	Reboot() error
	Close() error
}

// Package gmc is a client for GQ GMC radiation counters speaking the
// bracketed ASCII command protocol over a serial link.
package gmc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sergev/geiger/protocol"
)

// Serial link parameters
const (
	BaudRate    = 57600
	ReadTimeout = 1 * time.Second
)

// User-data flash geometry
const (
	DefaultPageSize = 2048
	UserDataSize    = 65536
	MaxPageSize     = 1 << 16 // size field is 16 bits, zero-based
)

// Reply terminator of date/time, temperature and setter replies
const replyTerminator = 0xaa

var (
	ErrNoReply              = errors.New("no reply from counter")
	ErrShortRead            = errors.New("short reply from counter")
	ErrBadTerminator        = errors.New("bad reply terminator")
	ErrNotAcknowledged      = errors.New("command not acknowledged")
	ErrPageRetriesExhausted = errors.New("page retries exhausted")
)

// Channel is the byte transport to the counter. A read timeout shows up as
// a Read returning no bytes and no error. go.bug.st/serial ports satisfy it.
type Channel interface {
	io.Reader
	io.Writer
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// ShortReadError reports a reply that stopped before its fixed size.
type ShortReadError struct {
	Command protocol.Command
	Want    int
	Got     int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short reply to %q: got %d of %d bytes", string(e.Command), e.Got, e.Want)
}

// Is makes errors.Is(err, ErrShortRead) true for any ShortReadError.
func (e *ShortReadError) Is(target error) bool {
	return target == ErrShortRead
}

// Client wraps a channel to a GMC counter. All operations are serialized:
// the protocol allows one outstanding command at a time.
type Client struct {
	mu             sync.Mutex
	ch             Channel
	closer         io.Closer
	log            zerolog.Logger
	loc            *time.Location
	strictDateTime bool
	maxPageRetries int
	pageSize       int
	userDataSize   int
	progress       func(page, total int)
	usbSerial      string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithLocation sets the time zone the counter clock runs in. Default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithStrictDateTime controls whether the terminator byte of date/time and
// temperature replies is checked. Enabled by default.
func WithStrictDateTime(strict bool) Option {
	return func(c *Client) {
		c.strictDateTime = strict
	}
}

// WithMaxPageRetries bounds the re-requests of a short page read.
// Zero, the default, retries forever.
func WithMaxPageRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxPageRetries = n
		}
	}
}

// WithPageSize sets the default page size of FetchPages.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 && size <= MaxPageSize {
			c.pageSize = size
		}
	}
}

// WithUserDataSize sets the size of the user-data region FetchPages reads by default.
func WithUserDataSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.userDataSize = size
		}
	}
}

// WithPageProgress registers a callback invoked after every page of FetchPages.
func WithPageProgress(fn func(page, total int)) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// New creates a client on an already opened channel.
func New(ch Channel, opts ...Option) *Client {
	c := &Client{
		ch:             ch,
		log:            zerolog.Nop(),
		loc:            time.UTC,
		strictDateTime: true,
		pageSize:       DefaultPageSize,
		userDataSize:   UserDataSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying port, if the client owns one.
func (c *Client) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// send writes a command to the counter
func (c *Client) send(cmd protocol.Command) error {
	_, err := c.ch.Write(cmd.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write command %q: %w", string(cmd), err)
	}
	return nil
}

// readReply reads up to n bytes. It returns early, with what it has, after
// `patience` consecutive reads that time out without data.
func (c *Client) readReply(n int, patience int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	idle := 0
	for got < n {
		k, err := c.ch.Read(buf[got:])
		got += k
		if err != nil && !errors.Is(err, io.EOF) {
			return buf[:got], fmt.Errorf("failed to read reply: %w", err)
		}
		if k > 0 {
			idle = 0
			continue
		}
		idle++
		if idle >= patience || err != nil {
			break
		}
	}
	return buf[:got], nil
}

// query sends a command and reads its fixed-size reply
func (c *Client) query(cmd protocol.Command, size int) ([]byte, error) {
	err := c.send(cmd)
	if err != nil {
		return nil, err
	}
	reply, err := c.readReply(size, 1)
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return nil, fmt.Errorf("%q: %w", string(cmd), ErrNoReply)
	}
	if len(reply) < size {
		return nil, &ShortReadError{Command: cmd, Want: size, Got: len(reply)}
	}
	return reply, nil
}

// exec sends a fire-and-forget command under the client lock
func (c *Client) exec(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(cmd)
}

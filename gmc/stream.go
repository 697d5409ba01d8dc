package gmc

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sergev/geiger/protocol"
)

// Unbounded makes a stream run until it is stopped.
const Unbounded = -1

// streamPatience is how many silent read timeouts a stream tolerates
// before a sample. The counter pushes once a second, the same as the
// read timeout, so one silent read is not yet a failure.
const streamPatience = 3

var (
	ErrStreamDone       = errors.New("stream done")
	ErrStreamNotStarted = errors.New("stream not started")
)

// StreamState is the state of a Stream.
type StreamState int

const (
	StreamInactive  StreamState = iota // created, Start not called
	StreamStreaming                    // heartbeat on, samples arriving
	StreamStopped                      // heartbeat off, cannot restart
)

// String returns the string representation of the StreamState
func (s StreamState) String() string {
	switch s {
	case StreamInactive:
		return "inactive"
	case StreamStreaming:
		return "streaming"
	case StreamStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stream reads the CPS words the counter pushes in heartbeat mode.
//
// Start turns the heartbeat on and takes the client lock; Stop turns it
// off and releases the lock. Stop runs at most once, whether it is called
// by the owner, by Next on an exhausted bound, or by Next after a read error.
type Stream struct {
	c         *Client
	state     StreamState
	remaining int // negative: unbounded
	received  int
}

// Stream creates a stream of count samples; Unbounded (or any negative
// count) streams until stopped.
func (c *Client) Stream(count int) *Stream {
	return &Stream{c: c, remaining: count}
}

// State returns the stream state.
func (s *Stream) State() StreamState {
	return s.state
}

// Received returns the number of samples delivered so far.
func (s *Stream) Received() int {
	return s.received
}

// Start enables the heartbeat.
func (s *Stream) Start() error {
	if s.state != StreamInactive {
		return fmt.Errorf("cannot start stream: %s", s.state)
	}

	s.c.mu.Lock()
	err := s.c.send(protocol.HeartbeatOn)
	if err != nil {
		s.state = StreamStopped
		s.c.mu.Unlock()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.state = StreamStreaming
	s.c.log.Debug().Int("count", s.remaining).Msg("stream started")
	return nil
}

// Next blocks until the next sample arrives. It returns ErrStreamDone once
// the bound is exhausted or the stream was stopped.
func (s *Stream) Next() (protocol.CountRate, error) {
	switch s.state {
	case StreamInactive:
		return 0, ErrStreamNotStarted
	case StreamStopped:
		return 0, ErrStreamDone
	}
	if s.remaining == 0 {
		if err := s.Stop(); err != nil {
			return 0, err
		}
		return 0, ErrStreamDone
	}

	reply, err := s.c.readReply(protocol.CountRateSize, streamPatience)
	if err == nil && len(reply) == 0 {
		err = fmt.Errorf("stream: %w", ErrNoReply)
	} else if err == nil && len(reply) < protocol.CountRateSize {
		err = &ShortReadError{Command: protocol.HeartbeatOn, Want: protocol.CountRateSize, Got: len(reply)}
	}
	if err != nil {
		return 0, errors.Join(err, s.Stop())
	}

	rate, err := protocol.DecodeCountRate(reply)
	if err != nil {
		return 0, errors.Join(err, s.Stop())
	}
	s.received++
	if s.remaining > 0 {
		s.remaining--
		if s.remaining == 0 {
			// Last sample: release the counter right away.
			if err := s.Stop(); err != nil {
				return rate, err
			}
		}
	}
	return rate, nil
}

// Stop disables the heartbeat. Calling it again, or on a stream that was
// never started, does nothing.
func (s *Stream) Stop() error {
	if s.state != StreamStreaming {
		s.state = StreamStopped
		return nil
	}
	s.state = StreamStopped
	defer s.c.mu.Unlock()

	err := s.c.send(protocol.HeartbeatOff)
	if err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	// Drop words pushed before the counter saw the command.
	err = s.c.ch.ResetInputBuffer()
	if err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	s.c.log.Debug().Int("received", s.received).Msg("stream stopped")
	return nil
}

// WithStream runs fn on a started stream and stops the stream when fn
// returns or panics.
func (c *Client) WithStream(count int, fn func(*Stream) error) (err error) {
	s := c.Stream(count)
	err = s.Start()
	if err != nil {
		return err
	}
	defer func() {
		stopErr := s.Stop()
		if err == nil {
			err = stopErr
		}
	}()
	return fn(s)
}

// Rates streams count samples (Unbounded for no limit) as a range-over-func
// sequence. The heartbeat is turned off when the loop ends for any reason:
// bound reached, break, read error or ctx cancelled. An error ends the sequence.
func (c *Client) Rates(ctx context.Context, count int) iter.Seq2[protocol.CountRate, error] {
	return func(yield func(protocol.CountRate, error) bool) {
		s := c.Stream(count)
		if err := s.Start(); err != nil {
			yield(0, err)
			return
		}
		defer func() {
			if err := s.Stop(); err != nil {
				c.log.Error().Err(err).Msg("failed to stop stream")
			}
		}()

		for {
			if err := ctx.Err(); err != nil {
				yield(0, err)
				return
			}
			rate, err := s.Next()
			if errors.Is(err, ErrStreamDone) {
				return
			}
			if !yield(rate, err) || err != nil {
				return
			}
		}
	}
}

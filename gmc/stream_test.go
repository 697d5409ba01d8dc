package gmc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/sergev/geiger/protocol"
)

// StreamSuite drives streams against a counter that pushes a burst of
// rate words when the heartbeat is turned on.
type StreamSuite struct {
	suite.Suite
	fake   *fakeCounter
	client *Client
	words  int
}

func (s *StreamSuite) SetupTest() {
	s.words = 8
	s.fake = newFakeCounter(func(cmd string) []byte {
		switch protocol.Command(cmd) {
		case protocol.HeartbeatOn:
			var push []byte
			for i := 0; i < s.words; i++ {
				push = append(push, 0x00, byte(i+1))
			}
			return push
		case protocol.GetCPS:
			return []byte{0x00, 0x07}
		}
		return nil
	})
	s.fake.chunk = 1
	s.client = New(s.fake)
}

func (s *StreamSuite) collect(ctx context.Context, count, limit int) ([]protocol.CountRate, []error) {
	var rates []protocol.CountRate
	var errs []error
	for rate, err := range s.client.Rates(ctx, count) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rates = append(rates, rate)
		if limit > 0 && len(rates) == limit {
			break
		}
	}
	return rates, errs
}

func (s *StreamSuite) TestBoundedStream() {
	rates, errs := s.collect(context.Background(), 5, 0)

	s.Empty(errs)
	s.Equal([]protocol.CountRate{0x0100, 0x0200, 0x0300, 0x0400, 0x0500}, rates)
	s.Equal(1, s.fake.count(protocol.HeartbeatOn))
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
	s.Equal([]string{string(protocol.HeartbeatOn), string(protocol.HeartbeatOff)}, s.fake.writes)
}

func (s *StreamSuite) TestRatesAreMasked() {
	s.fake.respond = func(cmd string) []byte {
		if protocol.Command(cmd) == protocol.HeartbeatOn {
			return []byte{0x34, 0xff, 0x12, 0xc7}
		}
		return nil
	}

	rates, errs := s.collect(context.Background(), 2, 0)
	s.Empty(errs)
	s.Equal([]protocol.CountRate{0x3f00, 0x0700}, rates)
}

func (s *StreamSuite) TestEarlyBreak() {
	rates, errs := s.collect(context.Background(), 10, 2)

	s.Empty(errs)
	s.Len(rates, 2)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestUnboundedBreak() {
	rates, errs := s.collect(context.Background(), Unbounded, 4)

	s.Empty(errs)
	s.Len(rates, 4)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestSilenceEndsStream() {
	s.words = 2
	rates, errs := s.collect(context.Background(), 5, 0)

	s.Len(rates, 2)
	s.Require().Len(errs, 1)
	s.ErrorIs(errs[0], ErrNoReply)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestPartialWord() {
	s.fake.respond = func(cmd string) []byte {
		if protocol.Command(cmd) == protocol.HeartbeatOn {
			return []byte{0x00, 0x01, 0x00}
		}
		return nil
	}
	rates, errs := s.collect(context.Background(), Unbounded, 0)

	s.Len(rates, 1)
	s.Require().Len(errs, 1)
	s.ErrorIs(errs[0], ErrShortRead)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestReadErrorStops() {
	stream := s.client.Stream(Unbounded)
	s.Require().NoError(stream.Start())
	s.fake.readErr = errors.New("unplugged")

	_, err := stream.Next()
	s.ErrorContains(err, "unplugged")
	s.Equal(StreamStopped, stream.State())
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rates, errs := s.collect(ctx, 5, 0)
	s.Empty(rates)
	s.Require().Len(errs, 1)
	s.ErrorIs(errs[0], context.Canceled)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestManualLifecycle() {
	stream := s.client.Stream(3)
	s.Equal(StreamInactive, stream.State())

	_, err := stream.Next()
	s.ErrorIs(err, ErrStreamNotStarted)

	s.Require().NoError(stream.Start())
	s.Equal(StreamStreaming, stream.State())
	s.Error(stream.Start())

	for i := 0; i < 3; i++ {
		_, err := stream.Next()
		s.Require().NoError(err)
	}
	s.Equal(3, stream.Received())
	s.Equal(StreamStopped, stream.State())

	_, err = stream.Next()
	s.ErrorIs(err, ErrStreamDone)
	s.NoError(stream.Stop())
	s.NoError(stream.Stop())
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
	s.Error(stream.Start())
}

func (s *StreamSuite) TestStopBeforeStart() {
	stream := s.client.Stream(3)
	s.NoError(stream.Stop())
	s.Equal(StreamStopped, stream.State())
	s.Zero(s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestClientUsableAfterStream() {
	_, errs := s.collect(context.Background(), 1, 0)
	s.Empty(errs)

	cps, err := s.client.CPS()
	s.Require().NoError(err)
	s.Equal(protocol.CountRate(0x0700), cps)
}

func (s *StreamSuite) TestWithStream() {
	boom := errors.New("boom")
	err := s.client.WithStream(Unbounded, func(stream *Stream) error {
		_, err := stream.Next()
		s.Require().NoError(err)
		return boom
	})
	s.ErrorIs(err, boom)
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))
}

func (s *StreamSuite) TestWithStreamPanics() {
	s.Panics(func() {
		_ = s.client.WithStream(Unbounded, func(*Stream) error {
			panic("consumer failed")
		})
	})
	s.Equal(1, s.fake.count(protocol.HeartbeatOff))

	// The lock was released by the deferred Stop.
	_, err := s.client.CPS()
	s.NoError(err)
}

func TestStreamSuite(t *testing.T) {
	suite.Run(t, new(StreamSuite))
}

package gmc

import (
	"fmt"
	"iter"

	"github.com/sergev/geiger/history"
	"github.com/sergev/geiger/protocol"
)

// PageError reports a page that could not be read in full.
type PageError struct {
	Index    int
	Attempts int
	Got      int
	Err      error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v after %d attempts (last read %d bytes)", e.Index, e.Err, e.Attempts, e.Got)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// FetchPage reads page index of the user-data region, pageSize bytes long.
// Short reads are retried with both buffers flushed, without limit unless
// WithMaxPageRetries was given.
func (c *Client) FetchPage(index, pageSize int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchPage(index, pageSize)
}

func (c *Client) fetchPage(index, pageSize int) ([]byte, error) {
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d out of range [1, %d]", pageSize, MaxPageSize)
	}
	offset := index * pageSize
	if index < 0 || offset > protocol.MaxUserDataOffset {
		return nil, fmt.Errorf("page %d of %d bytes is outside the user data region", index, pageSize)
	}

	// The counter reads the size field as zero-based: ask for one byte
	// less than the page size to receive exactly a page.
	cmd := protocol.UserDataRead(uint32(offset), uint16(pageSize-1))

	for attempt := 1; ; attempt++ {
		// Discard anything left over from an earlier reply.
		err := c.ch.ResetInputBuffer()
		if err != nil {
			return nil, fmt.Errorf("failed to reset input buffer: %w", err)
		}
		err = c.send(cmd)
		if err != nil {
			return nil, err
		}
		data, err := c.readReply(pageSize, 1)
		if err != nil {
			return nil, err
		}
		if len(data) == pageSize {
			c.log.Debug().Int("page", index).Int("attempts", attempt).Msg("page read")
			return data, nil
		}

		c.log.Debug().
			Int("page", index).
			Int("attempt", attempt).
			Int("bytes", len(data)).
			Int("missing", pageSize-len(data)).
			Msg("short page read")

		err = c.flush()
		if err != nil {
			return nil, err
		}
		if c.maxPageRetries > 0 && attempt > c.maxPageRetries {
			return nil, &PageError{Index: index, Attempts: attempt, Got: len(data), Err: ErrPageRetriesExhausted}
		}
	}
}

// FetchPages reads count pages of pageSize bytes starting at page 0 and
// returns them concatenated. Zero arguments select the defaults: the
// client page size, and as many pages as fill the user-data region.
func (c *Client) FetchPages(count, pageSize int) ([]byte, error) {
	if pageSize == 0 {
		pageSize = c.pageSize
	}
	if count == 0 {
		count = c.userDataSize / pageSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	blob := make([]byte, 0, count*pageSize)
	for index := 0; index < count; index++ {
		page, err := c.fetchPage(index, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", index, err)
		}
		blob = append(blob, page...)
		if c.progress != nil {
			c.progress(index+1, count)
		}
	}

	err := c.flush()
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// ReadHistory downloads the whole user-data region.
func (c *Client) ReadHistory() ([]byte, error) {
	return c.FetchPages(0, 0)
}

// History downloads the user-data region and decodes it. The decoder uses
// the client logger and time zone unless opts override them.
func (c *Client) History(opts ...history.Option) (iter.Seq[history.Sample], error) {
	blob, err := c.ReadHistory()
	if err != nil {
		return nil, err
	}
	opts = append([]history.Option{history.WithLocation(c.loc), history.WithLogger(c.log)}, opts...)
	return history.Decode(blob, opts...), nil
}

// flush clears both directions of the channel
func (c *Client) flush() error {
	err := c.ch.ResetInputBuffer()
	if err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	err = c.ch.ResetOutputBuffer()
	if err != nil {
		return fmt.Errorf("failed to reset output buffer: %w", err)
	}
	return nil
}

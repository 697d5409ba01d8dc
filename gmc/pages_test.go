package gmc

import (
	"bytes"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/geiger/history"
	"github.com/sergev/geiger/protocol"
)

// Helper function: flash serves user-data reads from blob. The first
// shortReads[page] requests of a page are cut to half a page.
func flash(t *testing.T, blob []byte, pageSize int, shortReads map[int]int) func(string) []byte {
	return func(cmd string) []byte {
		offset, size, err := protocol.ParseUserDataRead(protocol.Command(cmd))
		require.NoError(t, err)
		end := int(offset) + int(size) + 1
		if end > len(blob) {
			end = len(blob)
		}
		page := int(offset) / pageSize
		if shortReads[page] > 0 {
			shortReads[page]--
			return blob[offset : int(offset)+(end-int(offset))/2]
		}
		return blob[offset:end]
	}
}

func pattern(n int) []byte {
	blob := make([]byte, n)
	for i := range blob {
		blob[i] = byte(i * 7)
	}
	return blob
}

func TestFetchPageRequestsSizeMinusOne(t *testing.T) {
	blob := pattern(8 * DefaultPageSize)
	fake := newFakeCounter(flash(t, blob, DefaultPageSize, nil))
	fake.chunk = 512
	c := New(fake)

	page, err := c.FetchPage(3, DefaultPageSize)
	require.NoError(t, err)
	assert.Equal(t, blob[3*DefaultPageSize:4*DefaultPageSize], page)

	require.Len(t, fake.writes, 1)
	offset, size, err := protocol.ParseUserDataRead(protocol.Command(fake.writes[0]))
	require.NoError(t, err)
	assert.Equal(t, uint32(3*DefaultPageSize), offset)
	assert.Equal(t, uint16(DefaultPageSize-1), size)
}

func TestFetchPageRetriesShortReads(t *testing.T) {
	blob := pattern(8 * DefaultPageSize)
	fake := newFakeCounter(flash(t, blob, DefaultPageSize, map[int]int{3: 2}))
	c := New(fake)

	page, err := c.FetchPage(3, DefaultPageSize)
	require.NoError(t, err)
	assert.Equal(t, blob[3*DefaultPageSize:4*DefaultPageSize], page)

	want := string(protocol.UserDataRead(3*DefaultPageSize, DefaultPageSize-1))
	assert.Equal(t, []string{want, want, want}, fake.writes)
	assert.Equal(t, 2, fake.outputResets, "both buffers flushed after each short read")
	assert.Equal(t, 5, fake.inputResets, "input reset before every request and after each short read")
}

func TestFetchPageRetriesExhausted(t *testing.T) {
	blob := pattern(4 * 64)
	fake := newFakeCounter(flash(t, blob, 64, map[int]int{1: 100}))
	c := New(fake, WithMaxPageRetries(2))

	_, err := c.FetchPage(1, 64)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageRetriesExhausted)

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 1, pageErr.Index)
	assert.Equal(t, 3, pageErr.Attempts)
	assert.Equal(t, 32, pageErr.Got)
	assert.Len(t, fake.writes, 3)
}

func TestFetchPageRange(t *testing.T) {
	c := New(newFakeCounter(nil))

	_, err := c.FetchPage(0, 0)
	assert.Error(t, err)
	_, err = c.FetchPage(0, MaxPageSize+1)
	assert.Error(t, err)
	_, err = c.FetchPage(-1, 16)
	assert.Error(t, err)
	_, err = c.FetchPage(1<<20, 1<<16)
	assert.Error(t, err)
}

func TestFetchPageFullSizeField(t *testing.T) {
	fake := newFakeCounter(func(string) []byte { return nil })
	c := New(fake, WithMaxPageRetries(1))

	_, err := c.FetchPage(0, MaxPageSize)
	assert.ErrorIs(t, err, ErrPageRetriesExhausted)

	_, size, err := protocol.ParseUserDataRead(protocol.Command(fake.writes[0]))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), size)
}

func TestFetchPages(t *testing.T) {
	blob := pattern(4 * 16)
	fake := newFakeCounter(flash(t, blob, 16, map[int]int{2: 1}))
	fake.chunk = 5

	var progress []int
	c := New(fake,
		WithPageSize(16),
		WithUserDataSize(len(blob)),
		WithPageProgress(func(page, total int) {
			assert.Equal(t, 4, total)
			progress = append(progress, page)
		}),
	)

	got, err := c.ReadHistory()
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Len(t, fake.writes, 5)
}

func TestFetchPagesExplicit(t *testing.T) {
	blob := pattern(4 * 32)
	fake := newFakeCounter(flash(t, blob, 32, nil))
	c := New(fake)

	got, err := c.FetchPages(2, 32)
	require.NoError(t, err)
	assert.Equal(t, blob[:64], got)
}

func TestHistory(t *testing.T) {
	var blob []byte
	blob = append(blob, 0x00, 0x19, 0x01, 0x02, 0x03, 0x04, 0x05)
	blob = append(blob, history.Sentinel...)
	blob = append(blob, 0x01, 0x00, 0x05, 0x00, 0x06)
	blob = append(blob, history.Sentinel...)
	blob = append(blob, bytes.Repeat([]byte{0xff}, 64-len(blob))...)

	loc := time.FixedZone("UTC+1", 60*60)
	fake := newFakeCounter(flash(t, blob, 16, nil))
	c := New(fake, WithPageSize(16), WithUserDataSize(64), WithLocation(loc))

	seq, err := c.History()
	require.NoError(t, err)
	samples := slices.Collect(seq)
	require.Len(t, samples, 2)

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, loc)
	assert.Equal(t, protocol.CountRate(0x0500), samples[0].Rate)
	assert.True(t, samples[0].Time.Equal(base))
	assert.Equal(t, protocol.CountRate(0x0600), samples[1].Rate)
	assert.True(t, samples[1].Time.Equal(base.Add(time.Second)))
}

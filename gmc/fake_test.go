package gmc

import (
	"sync"

	"github.com/sergev/geiger/protocol"
)

// fakeCounter is a scripted Channel. Every Write is recorded and passed to
// respond; the returned bytes become readable. A Read with nothing pending
// behaves like a serial read timeout.
type fakeCounter struct {
	mu           sync.Mutex
	writes       []string
	pending      []byte
	chunk        int // max bytes per Read, 0 for no limit
	respond      func(cmd string) []byte
	readErr      error
	inputResets  int
	outputResets int
}

func newFakeCounter(respond func(cmd string) []byte) *fakeCounter {
	return &fakeCounter{respond: respond}
}

func (f *fakeCounter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := string(p)
	f.writes = append(f.writes, cmd)
	if f.respond != nil {
		f.pending = append(f.pending, f.respond(cmd)...)
	}
	return len(p), nil
}

func (f *fakeCounter) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	n := len(f.pending)
	if f.chunk > 0 && n > f.chunk {
		n = f.chunk
	}
	n = copy(p, f.pending[:n])
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeCounter) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.inputResets++
	return nil
}

func (f *fakeCounter) ResetOutputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputResets++
	return nil
}

// count returns how many times cmd was written
func (f *fakeCounter) count(cmd protocol.Command) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.writes {
		if w == string(cmd) {
			n++
		}
	}
	return n
}

// replies answers fixed commands from a table
func replies(table map[protocol.Command][]byte) func(string) []byte {
	return func(cmd string) []byte {
		return table[protocol.Command(cmd)]
	}
}

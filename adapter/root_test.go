package adapter

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sergev/geiger/history"
	"github.com/sergev/geiger/protocol"
	"go.bug.st/serial/enumerator"
)

// fakeCounter records Close calls; power and reboot fail with err
type fakeCounter struct {
	err    error
	closed int
}

func (f *fakeCounter) PrintStatus() {}

func (f *fakeCounter) Rates(ctx context.Context, count int) iter.Seq2[protocol.CountRate, error] {
	return func(yield func(protocol.CountRate, error) bool) {}
}

func (f *fakeCounter) ReadHistory() ([]byte, error) { return nil, f.err }

func (f *fakeCounter) History(opts ...history.Option) (iter.Seq[history.Sample], error) {
	return history.Decode(nil, opts...), f.err
}

func (f *fakeCounter) DateTime() (time.Time, error) { return time.Now(), f.err }
func (f *fakeCounter) SetDateTime(time.Time) error { return f.err }
func (f *fakeCounter) PowerOn() error { return f.err }
func (f *fakeCounter) PowerOff() error { return f.err }
func (f *fakeCounter) Reboot() error { return f.err }

func (f *fakeCounter) Close() error {
	f.closed++
	return nil
}

// Helper function: useCounter makes discovery return fake and gives the
// command tree a private config file.
func useCounter(t *testing.T, fake *fakeCounter) string {
	t.Helper()
	saved := registeredCounters
	registeredCounters = nil
	RegisterAdapter(0x1a86, 0x7523, func(*enumerator.PortDetails) (Counter, error) {
		return fake, nil
	})

	configPath := filepath.Join(t.TempDir(), ".geiger")
	if err := os.WriteFile(configPath, []byte("timezone = \"UTC\"\nlog_level = \"off\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		registeredCounters = saved
		configFlag = ""
		portFlag = ""
	})
	return configPath
}

func TestFailedCommandClosesCounter(t *testing.T) {
	fake := &fakeCounter{err: errors.New("no answer")}
	configPath := useCounter(t, fake)

	err := run([]string{"--config", configPath, "--port", "/dev/fake0", "power", "on"})
	if err == nil || !strings.Contains(err.Error(), "no answer") {
		t.Errorf("run() error = %v, expected the power failure", err)
	}
	if fake.closed != 1 {
		t.Errorf("counter closed %d times, expected 1", fake.closed)
	}
	if counter != nil {
		t.Errorf("counter still set after run")
	}
}

func TestCommandClosesCounter(t *testing.T) {
	fake := &fakeCounter{}
	configPath := useCounter(t, fake)

	err := run([]string{"--config", configPath, "--port", "/dev/fake0", "reboot"})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if fake.closed != 1 {
		t.Errorf("counter closed %d times, expected 1", fake.closed)
	}
}

func TestHistoryFromRawFile(t *testing.T) {
	fake := &fakeCounter{}
	configPath := useCounter(t, fake)
	t.Cleanup(func() { historyFromRawFile = "" })

	dir := t.TempDir()
	rawPath := filepath.Join(dir, "history.bin")
	csvPath := filepath.Join(dir, "history.csv")
	blob := []byte{
		0x00, 0x19, 0x01, 0x02, 0x03, 0x04, 0x05, 0x55, 0xaa,
		0x01, 0x00, 0x05, 0x00, 0x06, 0x55, 0xaa,
		0xff, 0xff, 0xff, 0xff,
	}
	if err := os.WriteFile(rawPath, blob, 0644); err != nil {
		t.Fatal(err)
	}

	err := run([]string{"--config", configPath, "history", "--from-raw", rawPath, csvPath})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if fake.closed != 0 {
		t.Errorf("offline command opened the counter")
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("CSV not written: %v", err)
	}
	expected := "time,count_rate,interval_seconds\n" +
		"2025-01-02T03:04:05Z,1280,1\n" +
		"2025-01-02T03:04:06Z,1536,1\n"
	if string(data) != expected {
		t.Errorf("CSV = %q, expected %q", data, expected)
	}
}

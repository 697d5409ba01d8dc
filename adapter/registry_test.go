package adapter

import (
	"testing"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

func TestMatchCounter(t *testing.T) {
	saved := registeredCounters
	defer func() { registeredCounters = saved }()
	registeredCounters = nil

	factory := func(*enumerator.PortDetails) (Counter, error) { return nil, nil }
	RegisterAdapter(0x1a86, 0x7523, factory)
	RegisterAdapter(0x10c4, 0xea60, factory)

	if got := matchCounter(0x1a86, 0x7523); len(got) != 1 {
		t.Errorf("matchCounter(CH340) = %d entries, want 1", len(got))
	}
	if got := matchCounter(0x0403, 0x6001); len(got) != 0 {
		t.Errorf("matchCounter(FTDI) = %d entries, want 0", len(got))
	}
}

func TestIsOffline(t *testing.T) {
	if isOffline(statusCmd) {
		t.Errorf("status should need a counter")
	}
	if !isOffline(opsCmd) {
		t.Errorf("ops should run without a counter")
	}

	cmd := &cobra.Command{Use: "x", Annotations: map[string]string{offlineAnnotation: "from-raw"}}
	cmd.Flags().String("from-raw", "", "")
	if isOffline(cmd) {
		t.Errorf("command with unset flag should need a counter")
	}
	if err := cmd.Flags().Set("from-raw", "dump.bin"); err != nil {
		t.Fatal(err)
	}
	if !isOffline(cmd) {
		t.Errorf("command with flag set should run without a counter")
	}
}

package protocol

import "fmt"

// Stability tells how much confidence an operation deserves.
type Stability int

const (
	// StabilityStable operations have been exercised against hardware.
	StabilityStable Stability = iota
	// StabilityUntested operations are encoded but were never run on a counter.
	StabilityUntested
	// StabilityUnverified operations run but their results are suspect,
	// e.g. the paged user-data transfer with its size-minus-one request.
	StabilityUnverified
	// StabilityInferred operations complete an encoding the firmware
	// documentation left unfinished.
	StabilityInferred
)

// String returns the string representation of the Stability
func (s Stability) String() string {
	switch s {
	case StabilityStable:
		return "stable"
	case StabilityUntested:
		return "untested"
	case StabilityUnverified:
		return "unverified"
	case StabilityInferred:
		return "inferred"
	default:
		return "unknown"
	}
}

// Operation describes one device operation: the command it sends, the size
// of the reply it waits for (0 for fire-and-forget) and its stability.
type Operation struct {
	Name      string
	Command   Command // empty for parameterized commands
	ReplySize int
	Stability Stability
}

// Operations lists every operation of the client in display order.
var Operations = []Operation{
	{Name: "serial", Command: GetSerial, ReplySize: 7, Stability: StabilityStable},
	{Name: "version", Command: GetVersion, ReplySize: 14, Stability: StabilityStable},
	{Name: "voltage", Command: GetVoltage, ReplySize: 1, Stability: StabilityStable},
	{Name: "cpm", Command: GetCPM, ReplySize: CountRateSize, Stability: StabilityStable},
	{Name: "cps", Command: GetCPS, ReplySize: CountRateSize, Stability: StabilityStable},
	{Name: "datetime", Command: GetDateTime, ReplySize: TimestampSize + 1, Stability: StabilityStable},
	{Name: "config", Command: GetConfig, ReplySize: 256, Stability: StabilityUntested},
	{Name: "temperature", Command: GetTemperature, ReplySize: 4, Stability: StabilityInferred},
	{Name: "heartbeat-on", Command: HeartbeatOn, Stability: StabilityStable},
	{Name: "heartbeat-off", Command: HeartbeatOff, Stability: StabilityStable},
	{Name: "stream", Command: HeartbeatOn, ReplySize: CountRateSize, Stability: StabilityStable},
	{Name: "power-on", Command: PowerOn, Stability: StabilityStable},
	{Name: "power-off", Command: PowerOff, Stability: StabilityStable},
	{Name: "reboot", Command: Reboot, Stability: StabilityStable},
	{Name: "factory-reset", Command: FactoryReset, Stability: StabilityUntested},
	{Name: "erase-config", Command: EraseConfig, Stability: StabilityUntested},
	{Name: "update-config", Command: UpdateConfig, Stability: StabilityUntested},
	{Name: "key-press", Stability: StabilityUntested},
	{Name: "set-datetime", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-date-year", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-date-month", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-date-day", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-time-hour", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-time-minute", ReplySize: 1, Stability: StabilityInferred},
	{Name: "set-time-second", ReplySize: 1, Stability: StabilityInferred},
	{Name: "read-page", Stability: StabilityUnverified},
	{Name: "read-history", Stability: StabilityUnverified},
}

// LookupOperation returns the operation with the given name.
func LookupOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("unknown operation %q", name)
}

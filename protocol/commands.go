// Package protocol describes the GQ GMC serial command set: the command
// catalog, the table of operations with their reply sizes, and the codecs
// for the fixed-format values the counter returns.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Command is a byte sequence sent verbatim to the counter.
type Command string

// Bytes returns the wire form of the command.
func (c Command) Bytes() []byte {
	return []byte(c)
}

// Fixed commands
const (
	GetSerial      Command = "<GETSERIAL>>"    // 7-byte serial number
	GetVersion     Command = "<GETVER>>"       // 14-byte ASCII model and firmware
	GetVoltage     Command = "<GETVOLT>>"      // battery voltage, 1 byte
	GetCPM         Command = "<GETCPM>>"       // counts per minute, 2 bytes
	GetCPS         Command = "<GETCPS>>"       // counts per second, 2 bytes
	GetConfig      Command = "<GETCFG>>"       // 256-byte configuration blob
	EraseConfig    Command = "<ECFG>>"         // erase configuration
	UpdateConfig   Command = "<CFGUPDATE>>"    // reload configuration
	HeartbeatOn    Command = "<HEARTBEAT1>>"   // push CPS every second
	HeartbeatOff   Command = "<HEARTBEAT0>>"   // stop pushing CPS
	PowerOff       Command = "<POWEROFF>>"     // turn the counter off
	PowerOn        Command = "<POWERON>>"      // turn the counter on
	Reboot         Command = "<REBOOT>>"       // restart the counter
	GetDateTime    Command = "<GETDATETIME>>"  // 7-byte date and time
	GetTemperature Command = "<GETTEMP>>"      // 4-byte temperature
	FactoryReset   Command = "<FACTORYRESET>>" // restore factory settings
	KeyS1          Command = "<key0>>"         // press key S1
	KeyS2          Command = "<key1>>"         // press key S2
	KeyS3          Command = "<key2>>"         // press key S3
	KeyS4          Command = "<key3>>"         // press key S4
)

// Command prefixes and terminator of parameterized commands
const (
	userDataReadPrefix = "<SPIR"
	setDateYearPrefix  = "<SETDATEYY"
	setDateMonthPrefix = "<SETDATEMM"
	setDateDayPrefix   = "<SETDATEDD"
	setTimeHourPrefix  = "<SETTIMEHH"
	setTimeMinPrefix   = "<SETTIMEMM"
	setTimeSecPrefix   = "<SETTIMESS"
	setDateTimePrefix  = "<SETDATETIME"
	terminator         = ">>"
)

// MaxUserDataOffset is the largest offset a user-data read can address (24 bits).
const MaxUserDataOffset = 1<<24 - 1

// ErrMalformedCommand is returned when a command cannot be parsed back into its fields.
var ErrMalformedCommand = errors.New("malformed command")

// UserDataRead builds the paged read command: "<SPIR", the low three bytes
// of the big-endian offset, the big-endian size field, ">>".
//
// The size field is passed through as is. The counter treats it as a
// zero-based count, so callers wanting N bytes send N-1.
func UserDataRead(offset uint32, size uint16) Command {
	buf := make([]byte, 0, len(userDataReadPrefix)+5+len(terminator))
	buf = append(buf, userDataReadPrefix...)

	var off [4]byte
	binary.BigEndian.PutUint32(off[:], offset)
	buf = append(buf, off[1:]...)
	buf = binary.BigEndian.AppendUint16(buf, size)
	buf = append(buf, terminator...)
	return Command(buf)
}

// ParseUserDataRead recovers the offset and size fields of a command built by UserDataRead.
func ParseUserDataRead(cmd Command) (offset uint32, size uint16, err error) {
	s := string(cmd)
	if !strings.HasPrefix(s, userDataReadPrefix) || !strings.HasSuffix(s, terminator) {
		return 0, 0, fmt.Errorf("%w: %q is not a user data read", ErrMalformedCommand, s)
	}
	body := []byte(s[len(userDataReadPrefix) : len(s)-len(terminator)])
	if len(body) != 5 {
		return 0, 0, fmt.Errorf("%w: user data read carries %d field bytes, expected 5", ErrMalformedCommand, len(body))
	}
	offset = uint32(body[0])<<16 | uint32(body[1])<<8 | uint32(body[2])
	size = binary.BigEndian.Uint16(body[3:5])
	return offset, size, nil
}

// The date and time setters below complete the reference encoding, which
// stopped at the prefix, with one raw field byte and the terminator. They
// have not been observed against hardware; see StabilityInferred.

// SetDateYear builds the command setting the two-digit year (years since 2000).
func SetDateYear(year uint8) Command {
	return fieldCommand(setDateYearPrefix, year)
}

// SetDateMonth builds the command setting the month.
func SetDateMonth(month uint8) Command {
	return fieldCommand(setDateMonthPrefix, month)
}

// SetDateDay builds the command setting the day of month.
func SetDateDay(day uint8) Command {
	return fieldCommand(setDateDayPrefix, day)
}

// SetTimeHour builds the command setting the hour.
func SetTimeHour(hour uint8) Command {
	return fieldCommand(setTimeHourPrefix, hour)
}

// SetTimeMinute builds the command setting the minute.
func SetTimeMinute(minute uint8) Command {
	return fieldCommand(setTimeMinPrefix, minute)
}

// SetTimeSecond builds the command setting the second.
func SetTimeSecond(second uint8) Command {
	return fieldCommand(setTimeSecPrefix, second)
}

// SetDateTime builds the command setting the whole clock at once:
// year-2000, month, day, hour, minute, second as raw bytes.
func SetDateTime(t time.Time) (Command, error) {
	fields, err := EncodeTimestamp(t)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, len(setDateTimePrefix)+len(fields)+len(terminator))
	buf = append(buf, setDateTimePrefix...)
	buf = append(buf, fields...)
	buf = append(buf, terminator...)
	return Command(buf), nil
}

// KeyPress builds the command simulating a press of key S1..S4 (index 0..3).
func KeyPress(index int) (Command, error) {
	switch index {
	case 0:
		return KeyS1, nil
	case 1:
		return KeyS2, nil
	case 2:
		return KeyS3, nil
	case 3:
		return KeyS4, nil
	}
	return "", fmt.Errorf("key index %d out of range [0, 3]", index)
}

func fieldCommand(prefix string, value uint8) Command {
	return Command(prefix + string([]byte{value}) + terminator)
}

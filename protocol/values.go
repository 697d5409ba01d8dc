package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// CountRateMask selects the bits of a raw rate word that carry the reading.
// The firmware emits the remaining bits as overflow and unused flags.
const CountRateMask = 0x3f00

// CountRateSize is the number of bytes of a raw rate word.
const CountRateSize = 2

// CountRate is a counts-per-minute or counts-per-second reading.
type CountRate int16

// DecodeCountRate decodes a 2-byte rate word. The word is read as a signed
// little-endian integer, the host order of the tooling the format was
// documented against, and masked with CountRateMask.
func DecodeCountRate(data []byte) (CountRate, error) {
	if len(data) < CountRateSize {
		return 0, fmt.Errorf("count rate needs %d bytes, got %d", CountRateSize, len(data))
	}
	return CountRateFromWord(int16(binary.LittleEndian.Uint16(data))), nil
}

// CountRateFromWord masks a raw signed rate word.
func CountRateFromWord(word int16) CountRate {
	return CountRate(word & CountRateMask)
}

// Timestamp layout: six bytes, years since 2000 first.
const (
	TimestampSize = 6
	baseYear      = 2000
)

// ErrInvalidTimestamp is matched by every ValidationError.
var ErrInvalidTimestamp = errors.New("invalid device timestamp")

// ValidationError reports a date or time field outside its valid range.
type ValidationError struct {
	Field string
	Value int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid device timestamp: %s %d out of range", e.Field, e.Value)
}

// Is makes errors.Is(err, ErrInvalidTimestamp) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTimestamp
}

// DecodeTimestamp decodes year-2000, month, day, hour, minute and second
// bytes into a time in loc. Fields out of range are rejected rather than
// normalized.
func DecodeTimestamp(data []byte, loc *time.Location) (time.Time, error) {
	if len(data) < TimestampSize {
		return time.Time{}, fmt.Errorf("device timestamp needs %d bytes, got %d", TimestampSize, len(data))
	}
	if loc == nil {
		loc = time.UTC
	}

	year := baseYear + int(data[0])
	month := int(data[1])
	day := int(data[2])
	hour := int(data[3])
	minute := int(data[4])
	second := int(data[5])

	if month < 1 || month > 12 {
		return time.Time{}, &ValidationError{Field: "month", Value: month}
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, &ValidationError{Field: "day", Value: day}
	}
	if hour > 23 {
		return time.Time{}, &ValidationError{Field: "hour", Value: hour}
	}
	if minute > 59 {
		return time.Time{}, &ValidationError{Field: "minute", Value: minute}
	}
	if second > 59 {
		return time.Time{}, &ValidationError{Field: "second", Value: second}
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), nil
}

// EncodeTimestamp is the inverse of DecodeTimestamp. Years outside
// 2000..2255 cannot be represented.
func EncodeTimestamp(t time.Time) ([]byte, error) {
	year := t.Year() - baseYear
	if year < 0 || year > 255 {
		return nil, &ValidationError{Field: "year", Value: t.Year()}
	}
	return []byte{
		byte(year),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}, nil
}

// daysIn returns the number of days in month m of year y.
func daysIn(m time.Month, y int) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

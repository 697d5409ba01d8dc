package history

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/rs/zerolog"

	"github.com/sergev/geiger/protocol"
)

// Sample is one decoded history reading.
type Sample struct {
	Rate            protocol.CountRate
	Time            time.Time
	IntervalSeconds int64 // sampling interval of the record the sample came from
}

// ErrMalformedRecord is matched by every Anomaly.
var ErrMalformedRecord = errors.New("malformed history record")

// AnomalyKind classifies a record the decoder had to skip.
type AnomalyKind int

const (
	OrphanInterval     AnomalyKind = iota // interval record before any date anchor
	ShortAnchor                           // date anchor shorter than AnchorSize
	InvalidAnchor                         // date anchor with out-of-range fields
	OddPayload                            // interval record with a dangling byte
	IntervalOutOfRange                    // sample time past the range of time.Time
)

// String returns the string representation of the AnomalyKind
func (k AnomalyKind) String() string {
	switch k {
	case OrphanInterval:
		return "orphan interval"
	case ShortAnchor:
		return "short anchor"
	case InvalidAnchor:
		return "invalid anchor"
	case OddPayload:
		return "odd payload"
	case IntervalOutOfRange:
		return "interval out of range"
	default:
		return "unknown"
	}
}

// Anomaly describes a skipped record.
type Anomaly struct {
	Record Record
	Kind   AnomalyKind
	Err    error // underlying cause, if any
}

func (a *Anomaly) Error() string {
	msg := fmt.Sprintf("history record %d at offset %d: %s", a.Record.Index, a.Record.Offset, a.Kind)
	if a.Err != nil {
		msg += ": " + a.Err.Error()
	}
	return msg
}

func (a *Anomaly) Unwrap() error {
	return a.Err
}

// Is makes errors.Is(err, ErrMalformedRecord) true for any Anomaly.
func (a *Anomaly) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Decoder turns history blobs into sample sequences.
type Decoder struct {
	loc       *time.Location
	onAnomaly func(*Anomaly)
	log       zerolog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLocation sets the time zone the counter clock runs in. Default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(d *Decoder) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithAnomalyHandler registers a sink for skipped records.
func WithAnomalyHandler(fn func(*Anomaly)) Option {
	return func(d *Decoder) {
		d.onAnomaly = fn
	}
}

// WithLogger sets the logger anomalies are reported to.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Decoder) {
		d.log = log
	}
}

// NewDecoder creates a decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		loc: time.UTC,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode is a shorthand for NewDecoder(opts...).Decode(blob).
func Decode(blob []byte, opts ...Option) iter.Seq[Sample] {
	return NewDecoder(opts...).Decode(blob)
}

// Collect decodes the whole blob at once and returns the samples together
// with the anomalies met on the way. An anomaly handler given in opts is
// still called.
func Collect(blob []byte, opts ...Option) ([]Sample, []*Anomaly) {
	d := NewDecoder(opts...)
	var anomalies []*Anomaly
	next := d.onAnomaly
	d.onAnomaly = func(a *Anomaly) {
		anomalies = append(anomalies, a)
		if next != nil {
			next(a)
		}
	}
	var samples []Sample
	for s := range d.Decode(blob) {
		samples = append(samples, s)
	}
	return samples, anomalies
}

// Decode returns the samples of blob in log order. The sequence is lazy:
// records are parsed as the caller iterates, and every iteration starts
// over from the first record.
//
// Only the first valid date anchor sets the base date; later anchors are
// ignored, as the counter firmware does. Records the decoder cannot use
// are reported to the anomaly handler and skipped.
func (d *Decoder) Decode(blob []byte) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		var basedate time.Time
		haveBase := false

		for _, rec := range Records(blob) {
			kind := rec.Data[0]

			if kind == AnchorType {
				if haveBase {
					d.log.Debug().Int("record", rec.Index).Int("offset", rec.Offset).Msg("ignoring repeated date anchor")
					continue
				}
				ts, err := d.parseAnchor(rec)
				if err != nil {
					d.report(err)
					continue
				}
				basedate, haveBase = ts, true
				d.log.Debug().Time("basedate", basedate).Int("record", rec.Index).Msg("date anchor")
				continue
			}

			if !haveBase {
				d.report(&Anomaly{Record: rec, Kind: OrphanInterval})
				continue
			}
			if (len(rec.Data)-1)%2 != 0 {
				d.report(&Anomaly{
					Record: rec,
					Kind:   OddPayload,
					Err:    fmt.Errorf("payload of %d bytes", len(rec.Data)-1),
				})
				continue
			}

			if !d.emitInterval(rec, basedate, yield) {
				return
			}
		}
	}
}

// parseAnchor reads the date anchor fields of rec.
func (d *Decoder) parseAnchor(rec Record) (time.Time, error) {
	if len(rec.Data) < AnchorSize {
		return time.Time{}, &Anomaly{
			Record: rec,
			Kind:   ShortAnchor,
			Err:    fmt.Errorf("%d bytes, expected %d", len(rec.Data), AnchorSize),
		}
	}

	stream := kaitai.NewStream(bytes.NewReader(rec.Data))
	if _, err := stream.ReadU1(); err != nil {
		return time.Time{}, &Anomaly{Record: rec, Kind: ShortAnchor, Err: err}
	}
	fields, err := stream.ReadBytes(protocol.TimestampSize)
	if err != nil {
		return time.Time{}, &Anomaly{Record: rec, Kind: ShortAnchor, Err: err}
	}

	ts, err := protocol.DecodeTimestamp(fields, d.loc)
	if err != nil {
		return time.Time{}, &Anomaly{Record: rec, Kind: InvalidAnchor, Err: err}
	}
	return ts, nil
}

// emitInterval yields the samples of an interval record. It returns false
// when the consumer stopped iterating. Sample times are computed in whole
// seconds; once one would leave the range of time.Time the rest of the
// record is reported and skipped.
func (d *Decoder) emitInterval(rec Record, basedate time.Time, yield func(Sample) bool) bool {
	stream := kaitai.NewStream(bytes.NewReader(rec.Data))
	exponent, err := stream.ReadU1()
	if err != nil {
		d.report(&Anomaly{Record: rec, Kind: OddPayload, Err: err})
		return true
	}
	interval, ok := IntervalSeconds(exponent)
	if !ok {
		d.report(&Anomaly{
			Record: rec,
			Kind:   IntervalOutOfRange,
			Err:    fmt.Errorf("interval 60^%d seconds overflows", exponent-1),
		})
		return true
	}
	base := basedate.Unix()

	for index := int64(0); ; index++ {
		eof, err := stream.EOF()
		if err != nil || eof {
			return true
		}
		word, err := stream.ReadS2le()
		if err != nil {
			d.report(&Anomaly{Record: rec, Kind: OddPayload, Err: err})
			return true
		}
		unix, ok := sampleTime(base, index, interval)
		if !ok {
			d.report(&Anomaly{
				Record: rec,
				Kind:   IntervalOutOfRange,
				Err:    fmt.Errorf("sample %d at %d-second interval overflows", index, interval),
			})
			return true
		}
		sample := Sample{
			Rate:            protocol.CountRateFromWord(word),
			Time:            time.Unix(unix, 0).In(d.loc),
			IntervalSeconds: interval,
		}
		if !yield(sample) {
			return false
		}
	}
}

func (d *Decoder) report(err error) {
	var anomaly *Anomaly
	if !errors.As(err, &anomaly) {
		return
	}
	d.log.Warn().
		Int("record", anomaly.Record.Index).
		Int("offset", anomaly.Record.Offset).
		Str("kind", anomaly.Kind.String()).
		Err(anomaly.Err).
		Msg("skipping history record")
	if d.onAnomaly != nil {
		d.onAnomaly(anomaly)
	}
}

// maxUnix is the last Unix second time.Unix can represent.
const maxUnix = math.MaxInt64 - 62135596800

// IntervalSeconds returns the sampling interval encoded by a record type
// byte, 60^(n-1) seconds. It reports false when the interval does not fit
// in an int64.
func IntervalSeconds(exponent uint8) (int64, bool) {
	interval := int64(1)
	for i := uint8(1); i < exponent; i++ {
		if interval > math.MaxInt64/60 {
			return 0, false
		}
		interval *= 60
	}
	return interval, true
}

// sampleTime returns base + index*interval in Unix seconds, or false when
// the result is past maxUnix.
func sampleTime(base, index, interval int64) (int64, bool) {
	if index > 0 && interval > (maxUnix-base)/index {
		return 0, false
	}
	return base + index*interval, true
}

package history

import (
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/gocarina/gocsv"
)

// csvSample is the CSV row layout of a Sample.
type csvSample struct {
	Time            string `csv:"time"`
	CountRate       int    `csv:"count_rate"`
	IntervalSeconds int64  `csv:"interval_seconds"`
}

// WriteCSV writes samples to w as CSV with a header row.
// Times are formatted as RFC 3339.
func WriteCSV(w io.Writer, samples iter.Seq[Sample]) error {
	rows := []csvSample{}
	for s := range samples {
		rows = append(rows, csvSample{
			Time:            s.Time.Format(time.RFC3339),
			CountRate:       int(s.Rate),
			IntervalSeconds: s.IntervalSeconds,
		})
	}

	err := gocsv.Marshal(&rows, w)
	if err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// Package history decodes the history log a GMC counter keeps in its
// user-data flash into timestamped count-rate samples.
//
// The log is a run of records separated by the two-byte sentinel 0x55 0xAA.
// A record starting with 0x00 is a date anchor carrying six date and time
// bytes; a record starting with n >= 1 is a run of 2-byte rate words taken
// every 60^(n-1) seconds. Erased flash past the end of the log reads 0xFF.
package history

import "bytes"

// Record layout
const (
	AnchorType = 0x00 // first byte of a date anchor record
	AnchorSize = 7    // type byte + six date/time bytes
	padding    = 0xff // erased flash filler
)

// Sentinel separates history records.
var Sentinel = []byte{0x55, 0xaa}

// Record is one sentinel-delimited chunk of the history blob.
type Record struct {
	Index  int    // position among the non-empty records
	Offset int    // byte offset of Data within the trimmed blob
	Data   []byte // record bytes, sentinel excluded
}

// Trim strips the trailing erased-flash padding from blob.
func Trim(blob []byte) []byte {
	end := len(blob)
	for end > 0 && blob[end-1] == padding {
		end--
	}
	return blob[:end]
}

// Records trims blob and splits it on the sentinel. Empty records produced
// by adjacent sentinels are skipped. The returned records share memory with blob.
func Records(blob []byte) []Record {
	data := Trim(blob)

	var records []Record
	start := 0
	for start <= len(data) {
		end := bytes.Index(data[start:], Sentinel)
		if end < 0 {
			end = len(data)
		} else {
			end += start
		}
		if end > start {
			records = append(records, Record{
				Index:  len(records),
				Offset: start,
				Data:   data[start:end],
			})
		}
		start = end + len(Sentinel)
	}
	return records
}

// Package stream talks to the crew orchestrator: it decodes the
// server-sent event stream, classifies each event and folds the events into
// one live crew-update message.
package stream

import (
	"bytes"
)

// DataPrefix opens the payload line of a record.
const DataPrefix = "data:"

var recordDelim = []byte("\n\n")

// Decoder splits a byte stream into records separated by a blank line. A
// trailing partial record is kept until a later Feed completes it.
type Decoder struct {
	buf []byte
}

// Feed appends p and returns every record it completes, without delimiters.
// Carriage returns are dropped so CRLF streams split the same way.
func (d *Decoder) Feed(p []byte) [][]byte {
	for _, b := range p {
		if b != '\r' {
			d.buf = append(d.buf, b)
		}
	}
	var records [][]byte
	for {
		i := bytes.Index(d.buf, recordDelim)
		if i < 0 {
			break
		}
		rec := make([]byte, i)
		copy(rec, d.buf[:i])
		d.buf = d.buf[i+len(recordDelim):]
		if len(bytes.TrimSpace(rec)) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// Pending returns the buffered partial record.
func (d *Decoder) Pending() []byte {
	return d.buf
}

// Payload extracts the data carried by a record. Multiple data lines are
// joined with newlines; comment, event and id lines are skipped. ok is false
// when the record carries no data line.
func Payload(record []byte) (payload []byte, ok bool) {
	var parts [][]byte
	for _, line := range bytes.Split(record, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte(DataPrefix)) {
			continue
		}
		data := line[len(DataPrefix):]
		if len(data) > 0 && data[0] == ' ' {
			data = data[1:]
		}
		parts = append(parts, data)
	}
	if len(parts) == 0 {
		return nil, false
	}
	return bytes.Join(parts, []byte("\n")), true
}

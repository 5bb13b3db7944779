// Package ingest turns enrollment exports and placement plans into the
// course catalog and grid placements the timetable engine works with.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newCSVReader sniffs the delimiter from the header line. Semicolon and tab
// separated exports are common from spreadsheet tools.
func newCSVReader(r io.Reader) (gocsv.CSVReader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}
	if idx := bytes.IndexByte(head, '\n'); idx >= 0 {
		head = head[:idx]
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(head)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader, nil
}

func detectDelimiter(header []byte) rune {
	best, bestCount := ',', bytes.Count(header, []byte{','})
	for _, candidate := range []rune{';', '\t'} {
		if n := bytes.Count(header, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// unmarshal decodes r into out, treating a file without a header as empty.
func unmarshal(r io.Reader, out interface{}) error {
	reader, err := newCSVReader(r)
	if err != nil {
		return err
	}
	if err := gocsv.UnmarshalCSV(reader, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("parse csv: %w", err)
	}
	return nil
}

package core

// codec.go reads marketplace exports and writes converted inventories.
//
// Exports are small enough to read whole. Before parsing, the data is
// cleaned of the usual spreadsheet artifacts:
//
//   - a UTF-8 byte order mark is dropped
//   - data that is not valid UTF-8 is decoded as Windows-1252
//   - the delimiter is sniffed from the header line (comma, semicolon or tab)

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyInput is returned by ParseTable for an export with no header row.
var ErrEmptyInput = errors.New("file is empty")

// ParseTable reads an export into a header and one RawRow per data row.
// The first record is the header. Rows shorter or longer than the header are
// tolerated; blank rows are skipped.
func ParseTable(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	data, err = cleanInput(data)
	if err != nil {
		return Table{}, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyInput
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = cleanCell(h)
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(RawRow, len(header))
		for i, name := range header {
			if i < len(rec) && name != "" {
				row[name] = cleanCell(rec[i])
			}
		}
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows}, nil
}

// WriteRecords writes records as CSV under the fixed output header.
func WriteRecords(w io.Writer, records []OutputRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(rec.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cleanInput(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return decoded, nil
}

// sniffDelimiter picks the most frequent candidate separator on the header
// line. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// cleanCell trims whitespace and unwraps the ="..." formula form that
// spreadsheet programs use to keep ids from being read as numbers. Other
// quotes are kept, since card names may contain them.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		return s[2 : len(s)-1]
	}
	return s
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

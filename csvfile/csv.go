// Package csvfile implements reading of header-bearing CSV input files.
//
// Input encoding is not trusted: exports from heterogeneous sources are not
// reliably UTF-8, so decoding falls back to Latin-1 (which cannot fail)
// rather than aborting a whole file on one bad byte. Field values are
// cleaned of surrounding quotes and whitespace the way sloppy spreadsheet
// exports require.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Row is one logical CSV record. Index is the 0-based position in the
// source file, retained so parallel processing can restore original order.
// Rows are immutable once read.
type Row struct {
	Index  int
	Fields map[string]string
}

// File is a parsed CSV file.
type File struct {
	// Name is the CSV filename (base name, used as the file identifier).
	Name string
	// Header holds the field names in source column order.
	Header []string
	// Rows holds the records in source order.
	Rows []Row
	// Degraded is set when the Latin-1 fallback decode was used.
	Degraded bool
}

// ParseFile reads and parses a CSV file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	return Parse(name, data)
}

// Parse parses CSV data. The first record is the header.
func Parse(name string, data []byte) (*File, error) {
	text, degraded := Decode(data)

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1 // tolerate ragged records

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("parsing %s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s header: %w", name, err)
	}
	for i, h := range header {
		header[i] = cleanField(h)
	}

	f := &File{
		Name:     name,
		Header:   header,
		Degraded: degraded,
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s row %d: %w", name, len(f.Rows)+1, err)
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(record) {
				fields[h] = cleanField(record[i])
			} else {
				fields[h] = ""
			}
		}
		f.Rows = append(f.Rows, Row{Index: len(f.Rows), Fields: fields})
	}

	return f, nil
}

// Decode converts raw bytes to text. Valid UTF-8 passes through untouched;
// anything else is decoded as Latin-1, which maps every byte to a code
// point and therefore cannot fail. The degraded flag tells the caller the
// fallback was used — never an error.
func Decode(raw []byte) (text string, degraded bool) {
	if utf8.Valid(raw) {
		return string(raw), false
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO 8859-1 decodes any byte sequence; this branch is unreachable
		// but the text/encoding API still returns an error value.
		return string(raw), true
	}
	return string(decoded), true
}

// cleanField strips surrounding whitespace and stray double quotes left
// behind by spreadsheet exports.
func cleanField(s string) string {
	return strings.Trim(s, " \t\"")
}

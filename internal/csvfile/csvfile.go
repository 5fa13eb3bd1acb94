// Package csvfile reads the header and rows of an uploaded CSV file.
//
// Parsing is deliberately naive: lines are split on "\n" and values on ",".
// Quoted fields with embedded commas are not supported; such rows end up
// with the wrong column count and are skipped.
package csvfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrNoHeaders = errors.New("no headers detected in CSV file")
)

const maxSkippedSamples = 10

// Header is the first non-blank line of a file plus the record count
// derived from the remaining non-blank lines.
type Header struct {
	Columns      []string `json:"columns"`
	TotalRecords int      `json:"total_records"`
}

// File is a parsed CSV upload.
type File struct {
	Header
	Rows []Record `json:"-"`

	// Skipped counts data rows dropped because their column count did not
	// match the header. SkippedLines holds the first few 1-based line
	// numbers for error reporting.
	Skipped      int   `json:"skipped"`
	SkippedLines []int `json:"skipped_lines,omitempty"`
}

// ParseHeader extracts column names and the data row count from text.
func ParseHeader(text string) Header {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return Header{}
	}
	return Header{
		Columns:      splitHeader(lines[0].text),
		TotalRecords: len(lines) - 1,
	}
}

// Parse reads the header and every well-formed data row of text.
func Parse(text string) (*File, error) {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	cols := splitHeader(lines[0].text)
	if len(cols) == 0 || (len(cols) == 1 && cols[0] == "") {
		return nil, ErrNoHeaders
	}

	f := &File{
		Header: Header{Columns: cols, TotalRecords: len(lines) - 1},
		Rows:   make([]Record, 0, len(lines)-1),
	}
	for _, ln := range lines[1:] {
		values := strings.Split(ln.text, ",")
		if len(values) != len(cols) {
			f.Skipped++
			if len(f.SkippedLines) < maxSkippedSamples {
				f.SkippedLines = append(f.SkippedLines, ln.number)
			}
			continue
		}
		rec := NewRecord(len(cols))
		for i, c := range cols {
			rec.Set(c, strings.TrimSpace(values[i]))
		}
		f.Rows = append(f.Rows, rec)
	}
	return f, nil
}

// SanitizeFileName strips underscores from the base name of an uploaded
// file, keeping the extension. "my_file.csv" becomes "myfile.csv".
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return strings.ReplaceAll(base, "_", "") + ext
}

type line struct {
	number int
	text   string
}

func nonBlankLines(text string) []line {
	var out []line
	for i, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, line{number: i + 1, text: strings.TrimRight(l, "\r")})
	}
	return out
}

func splitHeader(l string) []string {
	parts := strings.Split(l, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.NewReplacer("\r", "", "\n", "").Replace(p)
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// =============================================================================
// Record
// =============================================================================

// Record is one data row keyed by header name. Column order is kept so the
// JSON form matches the file's column order.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty record sized for n columns.
func NewRecord(n int) Record {
	return Record{keys: make([]string, 0, n), values: make(map[string]string, n)}
}

// Set assigns a column value. A repeated column keeps its first position
// and the last value.
func (r *Record) Set(col, val string) {
	if _, ok := r.values[col]; !ok {
		r.keys = append(r.keys, col)
	}
	r.values[col] = val
}

// Get returns the value of col.
func (r Record) Get(col string) (string, bool) {
	v, ok := r.values[col]
	return v, ok
}

// Columns returns the record's column names in order.
func (r Record) Columns() []string { return append([]string(nil), r.keys...) }

// Len returns the number of distinct columns.
func (r Record) Len() int { return len(r.keys) }

// Filter returns a record holding only the listed columns that exist in r,
// in r's column order. A nil cols returns r unchanged.
func (r Record) Filter(cols []string) Record {
	if cols == nil {
		return r
	}
	keep := make(map[string]bool, len(cols))
	for _, c := range cols {
		keep[c] = true
	}
	out := NewRecord(len(cols))
	for _, k := range r.keys {
		if keep[k] {
			out.Set(k, r.values[k])
		}
	}
	return out
}

// MarshalJSON writes the record as a JSON object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", k, err)
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value of %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

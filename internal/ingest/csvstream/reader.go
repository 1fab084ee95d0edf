package csvstream

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports malformed or unreadable CSV input.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("csv parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Field is one cell keyed by its header name.
type Field struct {
	Name  string
	Value string
}

// Record is one data row. Fields follow header order and stop at the shorter
// of the header and the row.
type Record struct {
	Line   int
	Fields []Field
}

// Get returns the value of the named column.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Options tune the decoder.
type Options struct {
	Comma     rune
	TrimSpace bool
}

// Reader yields records from a CSV stream whose first row is the header.
type Reader struct {
	cr     *csv.Reader
	opt    Options
	header []string
	line   int
	done   bool
}

// NewReader wraps r. The header is read lazily by the first call to Header or Next.
func NewReader(r io.Reader, opt Options) *Reader {
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	return &Reader{cr: cr, opt: opt}
}

// Header returns the normalized header, reading it if needed. An empty
// source yields a nil header and no error.
func (r *Reader) Header() ([]string, error) {
	if r.header != nil || r.done {
		return r.header, nil
	}

	for {
		rec, err := r.read()
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		r.header = normalizeHeader(rec)
		return r.header, nil
	}
}

// Next returns the next non-blank record, or io.EOF when the stream ends.
func (r *Reader) Next() (Record, error) {
	if _, err := r.Header(); err != nil {
		return Record{}, err
	}

	for {
		if r.done {
			return Record{}, io.EOF
		}

		rec, err := r.read()
		if errors.Is(err, io.EOF) {
			r.done = true
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, err
		}
		if isBlank(rec) {
			continue
		}

		n := min(len(rec), len(r.header))
		fields := make([]Field, 0, n)
		for i := 0; i < n; i++ {
			v := rec[i]
			if r.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			fields = append(fields, Field{Name: r.header[i], Value: v})
		}

		return Record{Line: r.line, Fields: fields}, nil
	}
}

func (r *Reader) read() ([]string, error) {
	rec, err := r.cr.Read()
	if err == nil {
		r.line, _ = r.cr.FieldPos(0)
		return rec, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, err
	}

	r.done = true
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return nil, &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return nil, &ParseError{Line: r.line, Err: err}
}

// Stream reads every record of src and hands it to fn. It stops at the first
// error from the decoder, fn, or ctx.
func Stream(ctx context.Context, src io.Reader, opt Options, fn func(Record) error) error {
	r := NewReader(src, opt)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

// isBlank matches lines holding nothing but whitespace. encoding/csv already
// drops empty lines; a row of empty cells ("a,,") is still a record.
func isBlank(rec []string) bool {
	return len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "")
}

func normalizeHeader(rec []string) []string {
	header := make([]string, len(rec))
	seen := make(map[string]int, len(rec))

	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}

		seen[h]++
		if n := seen[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}
		header[i] = h
	}

	return header
}

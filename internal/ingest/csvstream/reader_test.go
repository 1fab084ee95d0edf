package csvstream

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func collect(t *testing.T, input string, opt Options) ([]Record, error) {
	t.Helper()

	var out []Record
	err := Stream(context.Background(), strings.NewReader(input), opt, func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

func TestStreamMapsHeaderToValues(t *testing.T) {
	input := "\uFEFFname, status ,city\nAda,active,London\nBob,inactive,Paris\n"

	recs, err := collect(t, input, Options{TrimSpace: true})
	if err != nil {
		t.Fatalf("Stream() err = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Stream() records = %d, want 2", len(recs))
	}

	want := []Field{{Name: "name", Value: "Ada"}, {Name: "status", Value: "active"}, {Name: "city", Value: "London"}}
	if !reflect.DeepEqual(recs[0].Fields, want) {
		t.Fatalf("record 0 = %+v, want %+v", recs[0].Fields, want)
	}
	if got, ok := recs[1].Get("status"); !ok || got != "inactive" {
		t.Fatalf("record 1 status = %q/%v", got, ok)
	}
	if recs[1].Line != 3 {
		t.Fatalf("record 1 line = %d, want 3", recs[1].Line)
	}
}

func TestStreamToleratesRaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n1,2,3,4\n,,\n"

	recs, err := collect(t, input, Options{})
	if err != nil {
		t.Fatalf("Stream() err = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Stream() records = %d, want 3", len(recs))
	}
	if len(recs[0].Fields) != 2 {
		t.Fatalf("short row fields = %d, want 2", len(recs[0].Fields))
	}
	if len(recs[1].Fields) != 3 {
		t.Fatalf("long row fields = %d, want 3", len(recs[1].Fields))
	}
	if _, ok := recs[0].Get("c"); ok {
		t.Fatalf("short row must not carry column c")
	}
	if v, _ := recs[2].Get("a"); v != "" {
		t.Fatalf("empty-cell row value = %q", v)
	}
}

func TestStreamSkipsBlankLines(t *testing.T) {
	input := "\n\nname,age\n\nAda,36\n   \nBob,40\n\n"

	recs, err := collect(t, input, Options{})
	if err != nil {
		t.Fatalf("Stream() err = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Stream() records = %d, want 2", len(recs))
	}
}

func TestStreamReturnsParseError(t *testing.T) {
	input := "name,note\nAda,\"unterminated\nBob,ok\n"

	_, err := collect(t, input, Options{})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Stream() err = %v, want *ParseError", err)
	}
	if perr.Line == 0 {
		t.Fatalf("ParseError line not set")
	}
	if !strings.Contains(perr.Error(), "csv parse error") {
		t.Fatalf("unexpected message: %q", perr.Error())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStreamWrapsReadFailure(t *testing.T) {
	err := Stream(context.Background(), failingReader{}, Options{}, func(Record) error { return nil })

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Stream() err = %v, want *ParseError", err)
	}
}

func TestStreamPropagatesCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0

	err := Stream(context.Background(), strings.NewReader("a\n1\n2\n3\n"), Options{}, func(Record) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Stream() err = %v, want stop", err)
	}
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
}

func TestStreamHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Stream(ctx, strings.NewReader("a\n1\n"), Options{}, func(Record) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Stream() err = %v, want context.Canceled", err)
	}
}

func TestReaderHeaderNormalization(t *testing.T) {
	r := NewReader(strings.NewReader("id,,id\n1,2,3\n"), Options{})

	header, err := r.Header()
	if err != nil {
		t.Fatalf("Header() err = %v", err)
	}
	want := []string{"id", "column_2", "id_2"}
	if !reflect.DeepEqual(header, want) {
		t.Fatalf("Header() = %v, want %v", header, want)
	}

	if _, err := r.Next(); err != nil {
		t.Fatalf("Next() err = %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() err = %v, want io.EOF", err)
	}
}

func TestReaderEmptySource(t *testing.T) {
	r := NewReader(strings.NewReader(""), Options{})

	header, err := r.Header()
	if err != nil || header != nil {
		t.Fatalf("Header() = %v, %v; want nil, nil", header, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() err = %v, want io.EOF", err)
	}
}

package usecase

import (
	"math"
	"reflect"
	"strconv"
	"testing"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

func sampled(values ...string) *FieldStatistics {
	s := NewSampler(SamplerConfig{Rate: 1, Cap: 1000}, nil)
	for _, v := range values {
		s.Observe("col", v)
	}
	return s.Stats()["col"]
}

func repeat(n int, values ...string) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, values[i%len(values)])
	}
	return out
}

func testClassifier() Classifier {
	return NewClassifier(ClassifierConfig{UniqueScale: 5, SampleRate: 0.1, SampleCap: 1000})
}

func TestClassifyStatusColumnAsSelect(t *testing.T) {
	stats := sampled(repeat(20, "active", "inactive")...)

	c := testClassifier()
	if score := c.Score(stats); math.Abs(score-0.73) > 1e-9 {
		t.Fatalf("Score() = %v, want 0.73", score)
	}

	got := c.Classify("status", stats, 20)
	want := entity.FilteringOption{Key: "status", Type: entity.FilterTypeSelect, Options: []string{"active", "inactive"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Classify() = %+v, want %+v", got, want)
	}
}

func TestClassifySearchOnlyNames(t *testing.T) {
	stats := sampled(repeat(50, "a", "b")...)
	c := testClassifier()

	for _, column := range []string{"email", "Contact_E-Mail", "Work Email", "full_name", "Notes"} {
		got := c.Classify(column, stats, 50)
		if got.Type != entity.FilterTypeSearch || got.Options != nil {
			t.Fatalf("Classify(%q) = %+v, want search", column, got)
		}
	}
}

func TestClassifyHighCardinalityAsSearch(t *testing.T) {
	values := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		values = append(values, "SKU-"+strconv.Itoa(i))
	}

	got := testClassifier().Classify("sku", sampled(values...), 200)
	if got.Type != entity.FilterTypeSearch {
		t.Fatalf("Classify() = %+v, want search", got)
	}
}

func TestClassifyWithoutSamples(t *testing.T) {
	c := testClassifier()

	if got := c.Classify("status", nil, 10); got.Type != entity.FilterTypeSearch {
		t.Fatalf("Classify(nil) = %+v, want search", got)
	}
	if got := c.Classify("status", newFieldStatistics(), 10); got.Type != entity.FilterTypeSearch {
		t.Fatalf("Classify(empty) = %+v, want search", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	stats := map[string]*FieldStatistics{
		"status": sampled(repeat(30, "open", "closed", "pending")...),
		"email":  sampled(repeat(30, "a@x.io", "b@x.io")...),
		"city":   sampled(repeat(30, "Paris", "Rome")...),
	}
	c := testClassifier()

	first := c.ClassifyAll(stats, 30)
	for i := 0; i < 10; i++ {
		if got := c.ClassifyAll(stats, 30); !reflect.DeepEqual(got, first) {
			t.Fatalf("ClassifyAll() run %d = %+v, want %+v", i, got, first)
		}
	}

	keys := []string{first[0].Key, first[1].Key, first[2].Key}
	if !reflect.DeepEqual(keys, []string{"city", "email", "status"}) {
		t.Fatalf("ClassifyAll() keys = %v, want sorted", keys)
	}
}

func TestEffectiveTotalRowsIsCapped(t *testing.T) {
	c := testClassifier()

	if got := c.effectiveTotalRows(50); got != 50 {
		t.Fatalf("effectiveTotalRows(50) = %v", got)
	}
	if got := c.effectiveTotalRows(1_000_000); got != 10_000 {
		t.Fatalf("effectiveTotalRows(1e6) = %v, want 10000", got)
	}
}

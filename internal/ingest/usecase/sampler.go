package usecase

import (
	"math/rand/v2"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// shortValueLen is the longest value, in runes, still counted as short.
const shortValueLen = 20

// FieldStatistics accumulates sampled evidence about one destination column.
//
// The three flags start true and only ever move to false.
type FieldStatistics struct {
	UniqueValues         map[string]struct{}
	SampleCount          int
	TotalLength          int
	NoSpecialChars       bool
	AllShortValues       bool
	AllHaveCommonPattern bool

	pattern string
}

func newFieldStatistics() *FieldStatistics {
	return &FieldStatistics{
		UniqueValues:         make(map[string]struct{}),
		NoSpecialChars:       true,
		AllShortValues:       true,
		AllHaveCommonPattern: true,
	}
}

// HasSpecialChars reports whether any sampled value held a special character.
func (s *FieldStatistics) HasSpecialChars() bool {
	return !s.NoSpecialChars
}

// UniqueRatio is distinct values over sampled values.
func (s *FieldStatistics) UniqueRatio() float64 {
	if s.SampleCount == 0 {
		return 0
	}
	return float64(len(s.UniqueValues)) / float64(s.SampleCount)
}

// AvgLength is the mean rune length of sampled values.
func (s *FieldStatistics) AvgLength() float64 {
	if s.SampleCount == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.SampleCount)
}

// Values returns the distinct sampled values in ascending order.
func (s *FieldStatistics) Values() []string {
	out := make([]string, 0, len(s.UniqueValues))
	for v := range s.UniqueValues {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *FieldStatistics) observe(value string) {
	s.UniqueValues[value] = struct{}{}
	s.SampleCount++

	n := utf8.RuneCountInString(value)
	s.TotalLength += n

	if n > shortValueLen {
		s.AllShortValues = false
	}
	if s.NoSpecialChars && hasSpecialChar(value) {
		s.NoSpecialChars = false
	}

	if !s.AllHaveCommonPattern {
		return
	}
	p := valuePattern(value)
	if s.pattern == "" {
		s.pattern = p
		return
	}
	if p != s.pattern {
		s.AllHaveCommonPattern = false
	}
}

// SamplerConfig bounds the sampling.
type SamplerConfig struct {
	// Rate is the probability a row past the warm-up is sampled.
	Rate float64
	// Cap is the most values recorded per column.
	Cap int
	// WarmupRows are always sampled.
	WarmupRows int
}

// Sampler collects per-column statistics over a Bernoulli sample of rows.
// It is not safe for concurrent use.
type Sampler struct {
	cfg   SamplerConfig
	rand  func() float64
	rows  int
	stats map[string]*FieldStatistics
}

// NewSampler returns a sampler drawing from rnd, or from math/rand when rnd is nil.
func NewSampler(cfg SamplerConfig, rnd func() float64) *Sampler {
	if rnd == nil {
		rnd = rand.Float64
	}

	return &Sampler{
		cfg:   cfg,
		rand:  rnd,
		stats: make(map[string]*FieldStatistics),
	}
}

// SampleRow decides whether the next row is part of the sample.
func (s *Sampler) SampleRow() bool {
	s.rows++
	if s.rows <= s.cfg.WarmupRows {
		return true
	}
	return s.rand() < s.cfg.Rate
}

// Observe records one cell of a sampled row. Empty values only register the
// column.
func (s *Sampler) Observe(column, value string) {
	st, ok := s.stats[column]
	if !ok {
		st = newFieldStatistics()
		s.stats[column] = st
	}

	if strings.TrimSpace(value) == "" {
		return
	}
	if st.SampleCount >= s.cfg.Cap {
		return
	}

	st.observe(value)
}

// Stats returns the statistics keyed by column.
func (s *Sampler) Stats() map[string]*FieldStatistics {
	return s.stats
}

func hasSpecialChar(v string) bool {
	for _, r := range v {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '_', r == '.':
		default:
			return true
		}
	}
	return false
}

// valuePattern maps letters to 'a' and digits to '9', keeps other runes and
// collapses repeats, so "AB-12" and "xyz-9" share the pattern "a-9".
func valuePattern(v string) string {
	var b strings.Builder
	var last rune
	for _, r := range v {
		c := r
		switch {
		case unicode.IsLetter(r):
			c = 'a'
		case unicode.IsDigit(r):
			c = '9'
		}
		if c == last {
			continue
		}
		b.WriteRune(c)
		last = c
	}
	return b.String()
}

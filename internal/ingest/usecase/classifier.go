package usecase

import (
	"math"
	"strings"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

const (
	selectScoreThreshold = 0.6
	minSelectOptions     = 20
	selectOptionsRatio   = 0.1
)

// searchOnlyTerms mark free-text columns by name.
var searchOnlyTerms = []string{
	"name", "email", "description", "url", "text", "note",
	"comment", "address", "link", "website",
}

// ClassifierConfig tunes the select/search decision.
type ClassifierConfig struct {
	// UniqueScale multiplies the unique ratio before it is clamped to 1.
	UniqueScale float64
	SampleRate  float64
	SampleCap   int
}

// Classifier turns sampled statistics into filtering options.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) Classifier {
	if cfg.UniqueScale <= 0 {
		cfg.UniqueScale = 10
	}
	return Classifier{cfg: cfg}
}

// Classify decides how column should be filtered. Columns with no sampled
// values are search columns.
func (c Classifier) Classify(column string, stats *FieldStatistics, totalRows int64) entity.FilteringOption {
	search := entity.FilteringOption{Key: column, Type: entity.FilterTypeSearch}

	if isSearchOnlyName(column) || stats == nil || stats.SampleCount == 0 {
		return search
	}

	limit := math.Max(minSelectOptions, c.effectiveTotalRows(totalRows)*selectOptionsRatio)
	if c.Score(stats) > selectScoreThreshold && float64(len(stats.UniqueValues)) <= limit {
		return entity.FilteringOption{
			Key:     column,
			Type:    entity.FilterTypeSelect,
			Options: stats.Values(),
		}
	}

	return search
}

// ClassifyAll classifies every column and returns the options sorted by key.
func (c Classifier) ClassifyAll(stats map[string]*FieldStatistics, totalRows int64) []entity.FilteringOption {
	out := make([]entity.FilteringOption, 0, len(stats))
	for column, st := range stats {
		out = append(out, c.Classify(column, st, totalRows))
	}
	entity.SortFilteringOptions(out)
	return out
}

// Score is the weighted select score in [0,1].
func (c Classifier) Score(stats *FieldStatistics) float64 {
	score := (1-math.Min(stats.UniqueRatio()*c.cfg.UniqueScale, 1))*0.4 +
		(1-math.Min(stats.AvgLength()/shortValueLen, 1))*0.2

	if stats.AllShortValues {
		score += 0.1
	}
	if stats.NoSpecialChars {
		score += 0.1
	}
	if stats.AllHaveCommonPattern {
		score += 0.2
	}
	return score
}

// effectiveTotalRows caps the row count at what the sampler could have seen.
func (c Classifier) effectiveTotalRows(totalRows int64) float64 {
	rows := float64(totalRows)
	if c.cfg.SampleRate <= 0 || c.cfg.SampleCap <= 0 {
		return rows
	}
	return math.Min(rows, float64(c.cfg.SampleCap)/c.cfg.SampleRate)
}

func isSearchOnlyName(column string) bool {
	norm := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, strings.ToLower(column))

	for _, term := range searchOnlyTerms {
		if strings.Contains(norm, term) {
			return true
		}
	}
	return false
}

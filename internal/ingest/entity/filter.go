package entity

import (
	"sort"
	"time"
)

// FilteringOptionsTitle identifies the single persisted filtering option set.
const FilteringOptionsTitle = "dataset-filtering-options"

// FilteringOption tells the browse UI how to render a column filter.
type FilteringOption struct {
	Key     string     `json:"key"`
	Type    FilterType `json:"type"`
	Options []string   `json:"options,omitempty"`
}

// FilteringOptionSet is the system-wide singleton of filtering options.
type FilteringOptionSet struct {
	Title     string            `json:"title"`
	Options   []FilteringOption `json:"options"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Lookup returns the option for key.
func (s FilteringOptionSet) Lookup(key string) (FilteringOption, bool) {
	for _, opt := range s.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return FilteringOption{}, false
}

// Merge returns a set holding every option of s whose key is absent from
// next, plus all of next, sorted by key.
func (s FilteringOptionSet) Merge(next []FilteringOption) FilteringOptionSet {
	byKey := make(map[string]FilteringOption, len(s.Options)+len(next))
	for _, opt := range s.Options {
		byKey[opt.Key] = opt
	}
	for _, opt := range next {
		byKey[opt.Key] = opt
	}

	merged := make([]FilteringOption, 0, len(byKey))
	for _, opt := range byKey {
		merged = append(merged, opt)
	}
	SortFilteringOptions(merged)

	return FilteringOptionSet{Title: s.Title, Options: merged, UpdatedAt: s.UpdatedAt}
}

// SortFilteringOptions orders opts by key.
func SortFilteringOptions(opts []FilteringOption) {
	sort.Slice(opts, func(i, j int) bool {
		return opts[i].Key < opts[j].Key
	})
}

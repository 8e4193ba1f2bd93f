package domain

import (
	"slices"
	"strings"
)

type PreferenceKind string

const (
	PreferenceTopic   PreferenceKind = "topic"
	PreferenceKeyword PreferenceKind = "keyword"
	PreferenceSource  PreferenceKind = "source"
)

// NormalizeSet trims values and drops blanks and duplicates, keeping the first
// occurrence order.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// PreferenceDraft holds the sets being edited in the preferences view. Nothing
// reaches storage until the whole draft is saved.
type PreferenceDraft struct {
	Topics           []string
	Keywords         []string
	PreferredSources []string
}

func DraftFrom(p Preferences) PreferenceDraft {
	return PreferenceDraft{
		Topics:           slices.Clone(p.Topics),
		Keywords:         slices.Clone(p.Keywords),
		PreferredSources: slices.Clone(p.PreferredSources),
	}
}

func (d *PreferenceDraft) set(kind PreferenceKind) *[]string {
	switch kind {
	case PreferenceTopic:
		return &d.Topics
	case PreferenceKeyword:
		return &d.Keywords
	case PreferenceSource:
		return &d.PreferredSources
	default:
		return nil
	}
}

// Add appends value to the set of the given kind. Blank and already present
// values are ignored.
func (d *PreferenceDraft) Add(kind PreferenceKind, value string) bool {
	set := d.set(kind)
	value = strings.TrimSpace(value)
	if set == nil || value == "" || slices.Contains(*set, value) {
		return false
	}
	*set = append(*set, value)
	return true
}

func (d *PreferenceDraft) Remove(kind PreferenceKind, value string) bool {
	set := d.set(kind)
	if set == nil {
		return false
	}
	before := len(*set)
	*set = slices.DeleteFunc(*set, func(v string) bool { return v == value })
	return len(*set) != before
}

func (d PreferenceDraft) Normalized() PreferenceDraft {
	return PreferenceDraft{
		Topics:           NormalizeSet(d.Topics),
		Keywords:         NormalizeSet(d.Keywords),
		PreferredSources: NormalizeSet(d.PreferredSources),
	}
}

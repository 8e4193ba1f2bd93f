package domain_test

import (
	"slices"
	"testing"

	"newsinsight/internal/domain"
)

func TestNormalizeSet(t *testing.T) {
	got := domain.NormalizeSet([]string{" AI ", "", "Climate", "AI", "  "})
	want := []string{"AI", "Climate"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected set: got %q want %q", got, want)
	}
}

func TestPreferenceDraftAddRemove(t *testing.T) {
	draft := domain.DraftFrom(domain.Preferences{Topics: []string{"tech"}})

	if !draft.Add(domain.PreferenceTopic, "science") {
		t.Fatalf("expected new topic to be added")
	}
	if draft.Add(domain.PreferenceTopic, "tech") {
		t.Fatalf("expected duplicate topic to be ignored")
	}
	if draft.Add(domain.PreferenceKeyword, "   ") {
		t.Fatalf("expected blank keyword to be ignored")
	}
	if !draft.Add(domain.PreferenceSource, "BBC") {
		t.Fatalf("expected source to be added")
	}
	if !draft.Remove(domain.PreferenceTopic, "tech") {
		t.Fatalf("expected topic to be removed")
	}
	if draft.Remove(domain.PreferenceKeyword, "missing") {
		t.Fatalf("expected removing a missing keyword to report false")
	}

	if !slices.Equal(draft.Topics, []string{"science"}) {
		t.Fatalf("unexpected topics: %q", draft.Topics)
	}
	if !slices.Equal(draft.PreferredSources, []string{"BBC"}) {
		t.Fatalf("unexpected sources: %q", draft.PreferredSources)
	}
}

func TestDraftFromDoesNotAliasPreferences(t *testing.T) {
	prefs := domain.Preferences{Topics: []string{"tech"}}
	draft := domain.DraftFrom(prefs)
	draft.Remove(domain.PreferenceTopic, "tech")

	if len(prefs.Topics) != 1 {
		t.Fatalf("expected loaded preferences to stay untouched, got %q", prefs.Topics)
	}
}

func TestParseSentiment(t *testing.T) {
	for raw, want := range map[string]domain.Sentiment{
		"positive":   domain.SentimentPositive,
		" Negative ": domain.SentimentNegative,
		"NEUTRAL":    domain.SentimentNeutral,
	} {
		got, ok := domain.ParseSentiment(raw)
		if !ok || got != want {
			t.Errorf("ParseSentiment(%q) = %q, %v", raw, got, ok)
		}
	}

	if _, ok := domain.ParseSentiment("mixed"); ok {
		t.Errorf("expected unknown label to be rejected")
	}
}

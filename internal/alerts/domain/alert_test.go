package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDefaultPreferencesAllowEveryKind(t *testing.T) {
	prefs := DefaultPreferences()
	for _, k := range []Kind{KindFrustrated, KindUnconfident, KindConflict} {
		if !prefs.Allows(k) {
			t.Fatalf("expected %s allowed by default", k)
		}
	}
	if prefs.Allows(Kind("other")) {
		t.Fatal("expected unknown kind to be dropped")
	}
}

func TestWithTogglesOnlyOneKind(t *testing.T) {
	prefs := DefaultPreferences().With(KindFrustrated, false)
	if prefs.Allows(KindFrustrated) {
		t.Fatal("expected frustrated disabled")
	}
	if !prefs.Allows(KindUnconfident) || !prefs.Allows(KindConflict) {
		t.Fatal("expected other kinds untouched")
	}
}

func TestMessageTruncatesLongSamples(t *testing.T) {
	sample := strings.Repeat("é", 80)
	msg := Message(KindFrustrated, sample)

	want := strings.Repeat("é", ExcerptLimit) + "..."
	if !strings.Contains(msg, want) {
		t.Fatalf("expected excerpt of %d runes with ellipsis, got %q", ExcerptLimit, msg)
	}
	if strings.Contains(msg, strings.Repeat("é", ExcerptLimit+1)) {
		t.Fatalf("excerpt longer than limit: %d runes", utf8.RuneCountInString(msg))
	}
}

func TestMessageKeepsShortSamples(t *testing.T) {
	msg := Message(KindUnconfident, "não tenho certeza")
	if !strings.Contains(msg, `"não tenho certeza"`) || strings.Contains(msg, "...") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPreferenceChangeLeavesAbsentSwitches(t *testing.T) {
	prefs := ChangeFor(KindUnconfident, false).Apply(DefaultPreferences())
	if prefs.Unconfident || !prefs.Frustrated || !prefs.Conflict {
		t.Fatalf("unexpected preferences %+v", prefs)
	}
	if got := (PreferenceChange{}).Apply(prefs); got != prefs {
		t.Fatalf("empty change altered preferences: %+v", got)
	}
}

package repository

import (
	"strings"
	"testing"
)

func TestScoreWriteStampsScoreTime(t *testing.T) {
	if !strings.Contains(updateScoreSQL, "score_updated_at = now()") {
		t.Fatal("score update must stamp score_updated_at")
	}
}

func TestStaleScoresIgnoreUnrelatedEdits(t *testing.T) {
	if strings.Contains(listStaleScoresSQL, " updated_at") {
		t.Fatal("stale score lookup must not filter on updated_at, which status and follow-up edits bump")
	}
	for _, want := range []string{"score_updated_at IS NULL", "score_updated_at < $1", "NULLS FIRST"} {
		if !strings.Contains(listStaleScoresSQL, want) {
			t.Fatalf("stale score lookup missing %q", want)
		}
	}
}

// Package scoring ranks leads by engagement urgency. Scores are comparative:
// higher means the lead needs attention sooner. There is no fixed range.
package scoring

import (
	"math"
	"strings"
	"time"
)

const (
	// Sentiment contributions.
	weightFrustrated = 3.0
	weightNeutral    = 1.0
	weightPositive   = -1.0

	// recencyPerDay is added for every started day of silence.
	recencyPerDay = 0.5
	// neverContacted stands in for about five days of silence.
	neverContacted = 2.5
	// volumeDivisor turns message count into a small engagement nudge.
	volumeDivisor = 10.0
)

// Signals are the inputs of a score computation.
type Signals struct {
	Sentiment       string
	LastInteraction *time.Time
	MessageCount    int
}

// Score computes the priority of a lead at now.
func Score(sentiment string, lastInteraction *time.Time, messageCount int, now time.Time) float64 {
	total := sentimentTerm(sentiment) + recencyTerm(lastInteraction, now) + float64(messageCount)/volumeDivisor
	return math.Round(total*100) / 100
}

// ScoreSignals is Score over a Signals value.
func ScoreSignals(s Signals, now time.Time) float64 {
	return Score(s.Sentiment, s.LastInteraction, s.MessageCount, now)
}

func sentimentTerm(sentiment string) float64 {
	switch strings.ToLower(strings.TrimSpace(sentiment)) {
	case "frustrated", "negative":
		return weightFrustrated
	case "neutral":
		return weightNeutral
	case "positive":
		return weightPositive
	default:
		return 0
	}
}

func recencyTerm(lastInteraction *time.Time, now time.Time) float64 {
	if lastInteraction == nil {
		return neverContacted
	}
	// A timestamp ahead of now (clock skew) counts by its distance.
	elapsed := now.Sub(*lastInteraction)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	days := math.Ceil(elapsed.Hours() / 24)
	return recencyPerDay * days
}

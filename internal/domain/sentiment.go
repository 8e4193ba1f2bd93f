package domain

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment accepts the three labels in any case and surrounding space.
func ParseSentiment(raw string) (Sentiment, bool) {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s, true
	default:
		return "", false
	}
}

package domain

import "time"

// RawArticle is an article stub as returned by a news source, before
// normalization.
type RawArticle struct {
	Title       string
	URL         string
	SourceName  string
	PublishedAt time.Time
	Content     string
	Description string
}

// Analysis is the language-model annotation of one article. Fallback is set
// when the model reply could not be used and the fixed fallback was
// substituted.
type Analysis struct {
	Summary              string
	Sentiment            Sentiment
	SentimentExplanation string
	Fallback             bool
	FallbackReason       string
}

const (
	FallbackSummary     = "Failed to process article content."
	FallbackExplanation = "Could not determine sentiment due to processing error."
)

func FallbackAnalysis(reason string) Analysis {
	return Analysis{
		Summary:              FallbackSummary,
		Sentiment:            SentimentNeutral,
		SentimentExplanation: FallbackExplanation,
		Fallback:             true,
		FallbackReason:       reason,
	}
}

// NormalizedArticle is a RawArticle after cleanup: markup stripped, the
// user's topics attached, and a publish time guaranteed.
type NormalizedArticle struct {
	Title       string
	URL         string
	SourceName  string
	PublishedAt time.Time
	Content     string
	Topics      []string
}

func (n NormalizedArticle) Article() Article {
	return Article{
		Title:       n.Title,
		URL:         n.URL,
		Source:      n.SourceName,
		PublishedAt: n.PublishedAt,
		Content:     n.Content,
		Topics:      n.Topics,
	}
}

// DigestEntry is one processed article as delivered to a digest.
type DigestEntry struct {
	Article  Article
	Analysis Analysis
}

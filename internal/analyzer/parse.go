package analyzer

import (
	"strings"

	"newsinsight/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	ReasonNoJSON             = "no_json_object"
	ReasonInvalidJSON        = "invalid_json"
	ReasonMissingSummary     = "missing_summary"
	ReasonInvalidSentiment   = "invalid_sentiment"
	ReasonMissingExplanation = "missing_explanation"
	ReasonEmptyReply         = "empty_reply"
	ReasonRequestFailed      = "request_failed"
	ReasonNotConfigured      = "model_not_configured"
)

// ParseReply validates a model reply against the expected object shape and
// returns the fallback analysis when it does not match.
func ParseReply(reply string) domain.Analysis {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.FallbackAnalysis(ReasonEmptyReply)
	}

	object, ok := extractObject(reply)
	if !ok {
		return domain.FallbackAnalysis(ReasonNoJSON)
	}

	if !gjson.Valid(object) {
		return domain.FallbackAnalysis(ReasonInvalidJSON)
	}

	parsed := gjson.Parse(object)
	if !parsed.IsObject() {
		return domain.FallbackAnalysis(ReasonInvalidJSON)
	}

	summary := parsed.Get("summary")
	if summary.Type != gjson.String || strings.TrimSpace(summary.String()) == "" {
		return domain.FallbackAnalysis(ReasonMissingSummary)
	}

	sentimentField := parsed.Get("sentiment")
	if sentimentField.Type != gjson.String {
		return domain.FallbackAnalysis(ReasonInvalidSentiment)
	}
	sentiment, ok := domain.ParseSentiment(sentimentField.String())
	if !ok {
		return domain.FallbackAnalysis(ReasonInvalidSentiment)
	}

	explanation := parsed.Get("sentiment_explanation")
	if explanation.Type != gjson.String {
		return domain.FallbackAnalysis(ReasonMissingExplanation)
	}

	return domain.Analysis{
		Summary:              strings.TrimSpace(summary.String()),
		Sentiment:            sentiment,
		SentimentExplanation: strings.TrimSpace(explanation.String()),
	}
}

// extractObject returns the span from the first '{' to the last '}'.
func extractObject(reply string) (string, bool) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return "", false
	}

	return reply[start : end+1], true
}

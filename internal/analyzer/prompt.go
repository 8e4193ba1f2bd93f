package analyzer

import "strings"

const (
	systemPrompt = "You are an expert news analyst. Your task is to summarize news articles " +
		"and analyze their sentiment (positive, negative, or neutral). " +
		"Provide a concise summary (max 2-3 sentences) and a brief explanation of the sentiment."

	replyFormat = `{"summary": "concise summary here", ` +
		`"sentiment": "positive/negative/neutral", ` +
		`"sentiment_explanation": "brief explanation of sentiment"}`
)

func userPrompt(input Input) string {
	var b strings.Builder
	b.WriteString("Please analyze this news article:\n\n")
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(input.Title))
	b.WriteString("\n\nContent: ")
	b.WriteString(strings.TrimSpace(input.Content))
	b.WriteString("\n\nProvide your response in JSON format with the following structure:\n")
	b.WriteString(replyFormat)

	return b.String()
}

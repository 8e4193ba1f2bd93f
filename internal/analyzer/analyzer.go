package analyzer

import (
	"context"

	"newsinsight/internal/domain"
)

// Input is the article text sent to the model.
type Input struct {
	Title   string
	Content string
}

// Analyzer produces a summary and sentiment for one article. An error means
// the model could not be reached; an unusable reply is not an error but a
// fallback Analysis.
type Analyzer interface {
	Analyze(ctx context.Context, input Input) (domain.Analysis, error)
	Model() string
}

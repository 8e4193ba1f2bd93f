package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsinsight/internal/analyzer"
	"newsinsight/internal/domain"
	"newsinsight/internal/metrics"
	"newsinsight/internal/sources"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLanguage = "en"
	DefaultPageSize = 10
)

type Store interface {
	ListPreferences(ctx context.Context) ([]domain.Preferences, error)
	UpsertArticle(ctx context.Context, article *domain.Article) error
	UpsertProcessedArticle(ctx context.Context, p *domain.ProcessedArticle) error
	GetUserSettingsWithDefault(ctx context.Context, userID uuid.UUID) (*domain.UserSettings, error)
	DigestedArticleIDs(ctx context.Context, userID uuid.UUID, articleIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	MarkDigested(ctx context.Context, userID uuid.UUID, articleIDs []uuid.UUID, sentAt time.Time) error
}

type Notifier interface {
	SendDigest(ctx context.Context, chatID int64, entries []domain.DigestEntry) error
}

type Config struct {
	Workers  int
	Language string
	PageSize int
}

// Deps are the collaborators of a Pipeline. Analyzer, Notifier and Metrics
// may be nil.
type Deps struct {
	Store    Store
	Sources  []sources.Source
	Analyzer analyzer.Analyzer
	Notifier Notifier
	Metrics  *metrics.Metrics
}

type Pipeline struct {
	store    Store
	sources  []sources.Source
	analyzer analyzer.Analyzer
	notifier Notifier
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
	log      *slog.Logger
}

func New(deps Deps, cfg Config, log *slog.Logger) *Pipeline {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	return &Pipeline{
		store:    deps.Store,
		sources:  deps.Sources,
		analyzer: deps.Analyzer,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		cfg:      cfg,
		now:      time.Now,
		log:      log,
	}
}

// Run ingests news for every user. Failures of one user are recorded in the
// report and do not stop the others; the returned error is only set when the
// user list itself could not be loaded.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{StartedAt: p.now()}

	users, err := p.store.ListPreferences(ctx)
	if err != nil {
		p.metrics.IngestRun("error", time.Since(report.StartedAt).Seconds())
		return report, fmt.Errorf("list preferences: %w", err)
	}

	p.log.InfoContext(ctx, "Ingestion is started",
		"userCount", len(users),
		"workers", p.cfg.Workers)

	report.Users = make([]UserResult, len(users))
	limited := &limitedSources{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, prefs := range users {
		g.Go(func() error {
			result := p.processUser(gCtx, prefs, limited)
			report.Users[i] = result
			p.metrics.IngestUser(string(result.Status))

			if result.Err != nil {
				p.log.ErrorContext(gCtx, "Failed to ingest user",
					"error", result.Err,
					"userID", result.UserID,
					"stored", result.Stored)
			}

			return nil
		})
	}

	_ = g.Wait()

	report.FinishedAt = p.now()

	outcome := "ok"
	if ctx.Err() != nil {
		outcome = "canceled"
	} else if report.Count(StatusFailed) > 0 {
		outcome = "partial"
	}
	p.metrics.IngestRun(outcome, report.FinishedAt.Sub(report.StartedAt).Seconds())

	p.log.InfoContext(ctx, "Ingestion is finished",
		"outcome", outcome,
		"processed", report.Count(StatusProcessed),
		"noArticles", report.Count(StatusNoArticles),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"stored", report.Stored(),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

func (p *Pipeline) processUser(ctx context.Context, prefs domain.Preferences, limited *limitedSources) UserResult {
	result := UserResult{UserID: prefs.UserID}

	topics := domain.NormalizeSet(prefs.Topics)
	query := sources.Query{
		Topics:   topics,
		Keywords: domain.NormalizeSet(prefs.Keywords),
		FeedURLs: sources.FeedURLs(prefs.PreferredSources),
		Channels: sources.ChannelSlugs(prefs.PreferredSources),
		Language: p.cfg.Language,
		PageSize: p.cfg.PageSize,
	}
	if len(query.Terms()) == 0 {
		result.Status = StatusSkipped
		return result
	}

	raw, err := p.search(ctx, query, limited)
	if err != nil && len(raw) == 0 {
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	if err != nil {
		p.log.WarnContext(ctx, "Some sources failed",
			"error", err,
			"userID", prefs.UserID,
			"articleCount", len(raw))
	}

	normalized := normalize(raw, topics, p.now())
	if len(normalized) == 0 {
		result.Status = StatusNoArticles
		return result
	}

	var (
		errs    []error
		entries []domain.DigestEntry
	)

	for _, n := range normalized {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		entry, stored, storeErr := p.processArticle(ctx, n)
		if stored {
			result.Stored++
		}
		if storeErr != nil {
			errs = append(errs, storeErr)
			continue
		}
		if entry.Analysis.Fallback {
			result.Fallbacks++
		}

		entries = append(entries, entry)
	}

	result.Status = StatusProcessed
	if err := errors.Join(errs...); err != nil {
		result.Status = StatusFailed
		result.Err = err
	}

	result.Digested = p.notify(ctx, prefs.UserID, entries)

	return result
}

// limitedSources remembers sources that reported a rate limit during a run.
type limitedSources struct {
	mu    sync.Mutex
	names map[string]bool
}

func (l *limitedSources) has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.names[name]
}

// add reports whether name was not yet marked.
func (l *limitedSources) add(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.names[name] {
		return false
	}
	if l.names == nil {
		l.names = make(map[string]bool)
	}
	l.names[name] = true
	return true
}

func (p *Pipeline) search(
	ctx context.Context,
	query sources.Query,
	limited *limitedSources,
) ([]domain.RawArticle, error) {
	var (
		raw  []domain.RawArticle
		errs []error
	)

	for _, src := range p.sources {
		if limited.has(src.Name()) {
			continue
		}

		found, err := src.Search(ctx, query)
		if err != nil {
			if sources.IsRateLimited(err) && limited.add(src.Name()) {
				p.log.WarnContext(ctx, "Source is rate limited so it is skipped for the rest of the run",
					"error", err,
					"source", src.Name())
			}
			errs = append(errs, fmt.Errorf("search %s: %w", src.Name(), err))
			continue
		}
		raw = append(raw, found...)
	}

	return raw, errors.Join(errs...)
}

// processArticle stores one article and its analysis. stored reports whether
// the article row was written, even if the analysis could not be saved.
func (p *Pipeline) processArticle(
	ctx context.Context,
	n domain.NormalizedArticle,
) (domain.DigestEntry, bool, error) {
	article := n.Article()
	if err := p.store.UpsertArticle(ctx, &article); err != nil {
		return domain.DigestEntry{}, false, fmt.Errorf("upsert article %q: %w", article.URL, err)
	}
	p.metrics.ArticleStored(article.Source)

	analysis, model := p.analyze(ctx, article)

	processed := domain.ProcessedArticle{
		ArticleID:            article.ID,
		Summary:              analysis.Summary,
		Sentiment:            analysis.Sentiment,
		SentimentExplanation: analysis.SentimentExplanation,
		Fallback:             analysis.Fallback,
		Model:                model,
		ProcessedAt:          p.now().UTC(),
	}
	if err := p.store.UpsertProcessedArticle(ctx, &processed); err != nil {
		return domain.DigestEntry{}, true, fmt.Errorf("upsert processed article %s: %w", article.ID, err)
	}

	return domain.DigestEntry{Article: article, Analysis: analysis}, true, nil
}

func (p *Pipeline) analyze(ctx context.Context, article domain.Article) (domain.Analysis, string) {
	if p.analyzer == nil {
		p.metrics.Analysis(analyzer.ReasonNotConfigured)
		return domain.FallbackAnalysis(analyzer.ReasonNotConfigured), ""
	}

	model := p.analyzer.Model()

	analysis, err := p.analyzer.Analyze(ctx, analyzer.Input{Title: article.Title, Content: article.Content})
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to analyze article",
			"error", err,
			"articleID", article.ID,
			"model", model)

		analysis = domain.FallbackAnalysis(analyzer.ReasonRequestFailed)
	}

	if analysis.Fallback {
		p.log.WarnContext(ctx, "Using fallback analysis",
			"articleID", article.ID,
			"reason", analysis.FallbackReason)
		p.metrics.Analysis(analysis.FallbackReason)
	} else {
		p.metrics.Analysis("parsed")
	}

	return analysis, model
}

func (p *Pipeline) notify(ctx context.Context, userID uuid.UUID, entries []domain.DigestEntry) bool {
	if p.notifier == nil || len(entries) == 0 {
		return false
	}

	settings, err := p.store.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to get user settings",
			"error", err,
			"userID", userID)
		return false
	}
	if !settings.WantsDigest() {
		return false
	}

	fresh, err := p.undigested(ctx, userID, entries)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to load digested articles",
			"error", err,
			"userID", userID)
		return false
	}
	if len(fresh) == 0 {
		return false
	}

	if err = p.notifier.SendDigest(ctx, settings.TelegramChatID, fresh); err != nil {
		p.metrics.Digest("error")
		p.log.ErrorContext(ctx, "Failed to send digest",
			"error", err,
			"userID", userID,
			"chatID", settings.TelegramChatID)
		return false
	}

	p.metrics.Digest("sent")

	ids := make([]uuid.UUID, 0, len(fresh))
	for _, entry := range fresh {
		ids = append(ids, entry.Article.ID)
	}
	if err = p.store.MarkDigested(ctx, userID, ids, p.now().UTC()); err != nil {
		p.log.ErrorContext(ctx, "Failed to record digested articles",
			"error", err,
			"userID", userID,
			"articleCount", len(ids))
	}

	return true
}

// undigested drops entries already delivered to the user by earlier runs.
func (p *Pipeline) undigested(
	ctx context.Context,
	userID uuid.UUID,
	entries []domain.DigestEntry,
) ([]domain.DigestEntry, error) {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.Article.ID)
	}

	digested, err := p.store.DigestedArticleIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("get digested article ids: %w", err)
	}

	fresh := make([]domain.DigestEntry, 0, len(entries))
	for _, entry := range entries {
		if !digested[entry.Article.ID] {
			fresh = append(fresh, entry)
		}
	}

	return fresh, nil
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"newsinsight/internal/auth"
	"newsinsight/internal/dashboard"
	"newsinsight/internal/domain"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type signUpRequest struct {
	Email       string `json:"email"        form:"email"        validate:"required,email"`
	Password    string `json:"password"     form:"password"     validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" form:"display_name" validate:"max=100"`
}

type signInRequest struct {
	Email    string `json:"email"    form:"email"    validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type preferencesRequest struct {
	Topics           []string `json:"topics"            validate:"max=50,dive,max=100"`
	Keywords         []string `json:"keywords"          validate:"max=50,dive,max=100"`
	PreferredSources []string `json:"preferred_sources" validate:"max=50,dive,max=300"`
}

type settingsRequest struct {
	TelegramChatID int64 `json:"telegram_chat_id" validate:"required_if=DigestEnabled true"`
	DigestEnabled  bool  `json:"digest_enabled"`
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

type sessionResponse struct {
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type preferencesResponse struct {
	Topics           []string  `json:"topics"`
	Keywords         []string  `json:"keywords"`
	PreferredSources []string  `json:"preferred_sources"`
	UpdatedAt        time.Time `json:"updated_at,omitzero"`
}

type processedResponse struct {
	Summary              string    `json:"summary"`
	Sentiment            string    `json:"sentiment"`
	SentimentExplanation string    `json:"sentiment_explanation"`
	Fallback             bool      `json:"fallback"`
	ProcessedAt          time.Time `json:"processed_at"`
}

type feedItemResponse struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
	PublishedAt time.Time          `json:"published_at"`
	Content     string             `json:"content"`
	Topics      []string           `json:"topics"`
	Processed   *processedResponse `json:"processed,omitempty"`
	IsRead      bool               `json:"is_read"`
	IsSaved     bool               `json:"is_saved"`
}

type feedResponse struct {
	Items            []feedItemResponse `json:"items"`
	SavedOnly        bool               `json:"saved_only"`
	NeedsPreferences bool               `json:"needs_preferences"`
}

type savedResponse struct {
	Items []feedItemResponse `json:"items"`
}

type toggleSavedResponse struct {
	IsSaved bool         `json:"is_saved"`
	Feed    feedResponse `json:"feed"`
}

type settingsResponse struct {
	TelegramChatID int64 `json:"telegram_chat_id"`
	DigestEnabled  bool  `json:"digest_enabled"`
}

func (s *Server) signUp(c echo.Context) error {
	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issued, err := s.auth.SignUp(c.Request().Context(), auth.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newSessionResponse(issued))
}

func (s *Server) signIn(c echo.Context) error {
	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issued, err := s.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newSessionResponse(issued))
}

func (s *Server) signOut(c echo.Context) error {
	if err := s.auth.SignOut(c.Request().Context(), sessionFrom(c).ID); err != nil {
		return err
	}

	s.clearSessionCookie(c)

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) me(c echo.Context) error {
	session := sessionFrom(c)

	return c.JSON(http.StatusOK, sessionResponse{
		ExpiresAt: session.ExpiresAt,
		User:      userResponse{ID: session.UserID, Email: session.Email, DisplayName: session.DisplayName},
	})
}

func (s *Server) getPreferences(c echo.Context) error {
	prefs, err := s.dash.LoadPreferences(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newPreferencesResponse(prefs))
}

func (s *Server) putPreferences(c echo.Context) error {
	var req preferencesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	prefs, err := s.dash.SavePreferences(c.Request().Context(), sessionFrom(c), domain.PreferenceDraft{
		Topics:           req.Topics,
		Keywords:         req.Keywords,
		PreferredSources: req.PreferredSources,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newPreferencesResponse(prefs))
}

func (s *Server) getFeed(c echo.Context) error {
	savedOnly, err := savedOnlyParam(c)
	if err != nil {
		return err
	}

	return s.respondFeed(c, http.StatusOK, savedOnly)
}

func (s *Server) getSaved(c echo.Context) error {
	items, err := s.dash.LoadSaved(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, savedResponse{Items: newFeedItemResponses(items)})
}

func (s *Server) markRead(c echo.Context) error {
	articleID, err := articleIDParam(c)
	if err != nil {
		return err
	}
	savedOnly, err := savedOnlyParam(c)
	if err != nil {
		return err
	}

	if err = s.dash.MarkRead(c.Request().Context(), sessionFrom(c), articleID); err != nil {
		return err
	}

	return s.respondFeed(c, http.StatusOK, savedOnly)
}

func (s *Server) toggleSaved(c echo.Context) error {
	articleID, err := articleIDParam(c)
	if err != nil {
		return err
	}
	savedOnly, err := savedOnlyParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	session := sessionFrom(c)

	saved, err := s.dash.ToggleSaved(ctx, session, articleID)
	if err != nil {
		return err
	}

	page, err := s.dash.LoadFeed(ctx, session, savedOnly)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toggleSavedResponse{IsSaved: saved, Feed: newFeedResponse(page)})
}

func (s *Server) getSettings(c echo.Context) error {
	settings, err := s.dash.LoadSettings(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, settingsResponse{
		TelegramChatID: settings.TelegramChatID,
		DigestEnabled:  settings.DigestEnabled,
	})
}

func (s *Server) putSettings(c echo.Context) error {
	var req settingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	settings, err := s.dash.SaveSettings(c.Request().Context(), sessionFrom(c), req.TelegramChatID, req.DigestEnabled)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, settingsResponse{
		TelegramChatID: settings.TelegramChatID,
		DigestEnabled:  settings.DigestEnabled,
	})
}

func (s *Server) respondFeed(c echo.Context, status int, savedOnly bool) error {
	page, err := s.dash.LoadFeed(c.Request().Context(), sessionFrom(c), savedOnly)
	if err != nil {
		return err
	}

	return c.JSON(status, newFeedResponse(page))
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return c.Validate(req)
}

func articleIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid article id")
	}
	return id, nil
}

func savedOnlyParam(c echo.Context) (bool, error) {
	raw := c.QueryParam("saved")
	if raw == "" {
		return false, nil
	}

	savedOnly, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "saved must be true or false")
	}
	return savedOnly, nil
}

func newSessionResponse(issued *auth.Issued) sessionResponse {
	return sessionResponse{
		Token:     issued.Token,
		ExpiresAt: issued.Session.ExpiresAt,
		User: userResponse{
			ID:          issued.Session.UserID,
			Email:       issued.Session.Email,
			DisplayName: issued.Session.DisplayName,
		},
	}
}

func newPreferencesResponse(p *domain.Preferences) preferencesResponse {
	return preferencesResponse{
		Topics:           nonNil(p.Topics),
		Keywords:         nonNil(p.Keywords),
		PreferredSources: nonNil(p.PreferredSources),
		UpdatedAt:        p.UpdatedAt,
	}
}

func newFeedResponse(page *dashboard.FeedPage) feedResponse {
	return feedResponse{
		Items:            newFeedItemResponses(page.Items),
		SavedOnly:        page.SavedOnly,
		NeedsPreferences: page.NeedsPreferences,
	}
}

func newFeedItemResponses(items []domain.FeedItem) []feedItemResponse {
	out := make([]feedItemResponse, 0, len(items))
	for _, item := range items {
		resp := feedItemResponse{
			ID:          item.Article.ID,
			Title:       item.Article.Title,
			URL:         item.Article.URL,
			Source:      item.Article.Source,
			PublishedAt: item.Article.PublishedAt,
			Content:     item.Article.Content,
			Topics:      nonNil(item.Article.Topics),
			IsRead:      item.IsRead,
			IsSaved:     item.IsSaved,
		}
		if p := item.Processed; p != nil {
			resp.Processed = &processedResponse{
				Summary:              p.Summary,
				Sentiment:            string(p.Sentiment),
				SentimentExplanation: p.SentimentExplanation,
				Fallback:             p.Fallback,
				ProcessedAt:          p.ProcessedAt,
			}
		}
		out = append(out, resp)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"newsinsight/internal/auth"
	"newsinsight/internal/dashboard"
	"newsinsight/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type viewData struct {
	Title    string
	Tab      string
	Session  *domain.Session
	CSRF     string
	Error    string
	Notice   string
	Email    string
	Feed     *dashboard.FeedPage
	Articles []articleView
	Draft    domain.PreferenceDraft
	Settings *domain.UserSettings
}

type articleView struct {
	Item   domain.FeedItem
	CSRF   string
	Return string
}

func newViewData(c echo.Context, title string, tab string) viewData {
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)

	return viewData{
		Title:   title,
		Tab:     tab,
		Session: sessionFrom(c),
		CSRF:    csrfToken,
	}
}

func (d *viewData) setArticles(items []domain.FeedItem, returnPath string) {
	d.Articles = make([]articleView, 0, len(items))
	for _, item := range items {
		d.Articles = append(d.Articles, articleView{Item: item, CSRF: d.CSRF, Return: returnPath})
	}
}

// viewError is the inline text shown for a failed view operation.
func (s *Server) viewError(c echo.Context, err error) (int, string) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(c.Request().Context(), "Failed to render view",
			"error", err,
			"path", c.Path())
		message = "Something went wrong. Please try again."
	}
	return status, message
}

func (s *Server) viewSignIn(c echo.Context) error {
	if _, err := s.auth.Authenticate(c.Request().Context(), sessionToken(c)); err == nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	return c.Render(http.StatusOK, "signin.html", newViewData(c, "Sign in", ""))
}

func (s *Server) formSignIn(c echo.Context) error {
	data := newViewData(c, "Sign in", "")

	var req signInRequest
	if err := bindAndValidate(c, &req); err != nil {
		data.Error = "Enter your email and password."
		return c.Render(http.StatusBadRequest, "signin.html", data)
	}
	data.Email = req.Email

	issued, err := s.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "signin.html", data)
	}

	s.setSessionCookie(c, issued.Token, issued.Session.ExpiresAt)

	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) formSignUp(c echo.Context) error {
	data := newViewData(c, "Sign up", "")

	var req signUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		_, message := statusFor(err)
		data.Error = message
		return c.Render(http.StatusBadRequest, "signin.html", data)
	}

	issued, err := s.auth.SignUp(c.Request().Context(), auth.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "signin.html", data)
	}

	s.setSessionCookie(c, issued.Token, issued.Session.ExpiresAt)

	return c.Redirect(http.StatusSeeOther, "/preferences")
}

func (s *Server) formSignOut(c echo.Context) error {
	if err := s.auth.SignOut(c.Request().Context(), sessionFrom(c).ID); err != nil {
		s.log.ErrorContext(c.Request().Context(), "Failed to sign out",
			"error", err)
	}

	s.clearSessionCookie(c)

	return c.Redirect(http.StatusSeeOther, "/signin")
}

func (s *Server) viewFeed(c echo.Context) error {
	data := newViewData(c, "Feed", "feed")

	savedOnly, _ := strconv.ParseBool(c.QueryParam("saved"))
	returnPath := "/"
	if savedOnly {
		returnPath = "/?saved=true"
	}

	page, err := s.dash.LoadFeed(c.Request().Context(), data.Session, savedOnly)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		data.Feed = &dashboard.FeedPage{SavedOnly: savedOnly}
		return c.Render(status, "feed.html", data)
	}

	data.Feed = page
	data.setArticles(page.Items, returnPath)

	return c.Render(http.StatusOK, "feed.html", data)
}

func (s *Server) viewSaved(c echo.Context) error {
	data := newViewData(c, "Saved", "saved")

	items, err := s.dash.LoadSaved(c.Request().Context(), data.Session)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "saved.html", data)
	}

	data.setArticles(items, "/saved")

	return c.Render(http.StatusOK, "saved.html", data)
}

func (s *Server) formMarkRead(c echo.Context) error {
	articleID, err := articleIDParam(c)
	if err != nil {
		return err
	}

	if err = s.dash.MarkRead(c.Request().Context(), sessionFrom(c), articleID); err != nil {
		return err
	}

	return c.Redirect(http.StatusSeeOther, returnPath(c))
}

func (s *Server) formToggleSaved(c echo.Context) error {
	articleID, err := articleIDParam(c)
	if err != nil {
		return err
	}

	if _, err = s.dash.ToggleSaved(c.Request().Context(), sessionFrom(c), articleID); err != nil {
		return err
	}

	return c.Redirect(http.StatusSeeOther, returnPath(c))
}

func (s *Server) viewPreferences(c echo.Context) error {
	data := newViewData(c, "Preferences", "preferences")

	prefs, err := s.dash.LoadPreferences(c.Request().Context(), data.Session)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "preferences.html", data)
	}

	data.Draft = domain.DraftFrom(*prefs)

	return c.Render(http.StatusOK, "preferences.html", data)
}

// formPreferences edits the draft carried in the form. Only the "save"
// operation writes to storage.
func (s *Server) formPreferences(c echo.Context) error {
	data := newViewData(c, "Preferences", "preferences")

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	draft := domain.PreferenceDraft{
		Topics:           form["topic"],
		Keywords:         form["keyword"],
		PreferredSources: form["source"],
	}

	op := form.Get("op")
	switch {
	case op == "save":
		prefs, saveErr := s.dash.SavePreferences(c.Request().Context(), data.Session, draft)
		if saveErr != nil {
			status, message := s.viewError(c, saveErr)
			data.Error = message
			data.Draft = draft
			return c.Render(status, "preferences.html", data)
		}
		data.Draft = domain.DraftFrom(*prefs)
		data.Notice = "Preferences saved."

	case strings.HasPrefix(op, "add:"):
		kind := domain.PreferenceKind(strings.TrimPrefix(op, "add:"))
		draft.Add(kind, form.Get("new_"+string(kind)))
		data.Draft = draft
		data.Notice = "You have unsaved changes."

	case strings.HasPrefix(op, "remove:"):
		parts := strings.SplitN(op, ":", 3)
		if len(parts) == 3 {
			draft.Remove(domain.PreferenceKind(parts[1]), parts[2])
		}
		data.Draft = draft
		data.Notice = "You have unsaved changes."

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown operation")
	}

	return c.Render(http.StatusOK, "preferences.html", data)
}

func (s *Server) viewSettings(c echo.Context) error {
	data := newViewData(c, "Settings", "settings")

	settings, err := s.dash.LoadSettings(c.Request().Context(), data.Session)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "settings.html", data)
	}
	data.Settings = settings

	return c.Render(http.StatusOK, "settings.html", data)
}

func (s *Server) formSettings(c echo.Context) error {
	data := newViewData(c, "Settings", "settings")

	enabled := c.FormValue("digest_enabled") == "true"
	data.Settings = &domain.UserSettings{DigestEnabled: enabled}

	var chatID int64
	if raw := strings.TrimSpace(c.FormValue("telegram_chat_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			data.Error = "Chat ID must be a number."
			return c.Render(http.StatusBadRequest, "settings.html", data)
		}
		chatID = parsed
	}
	data.Settings.TelegramChatID = chatID

	if enabled && chatID == 0 {
		data.Error = "Enter your chat ID to enable the digest."
		return c.Render(http.StatusBadRequest, "settings.html", data)
	}

	settings, err := s.dash.SaveSettings(c.Request().Context(), data.Session, chatID, enabled)
	if err != nil {
		status, message := s.viewError(c, err)
		data.Error = message
		return c.Render(status, "settings.html", data)
	}

	data.Settings = settings
	data.Notice = "Settings saved."

	return c.Render(http.StatusOK, "settings.html", data)
}

// returnPath is the local page to go back to after a form action.
func returnPath(c echo.Context) string {
	raw := c.FormValue("return")

	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}

	return u.RequestURI()
}


package api

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"newsinsight/internal/domain"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// templateRenderer holds one template set per page, each combined with the
// shared layout.
type templateRenderer struct {
	pages map[string]*template.Template
}

func newTemplateRenderer() (*templateRenderer, error) {
	funcs := template.FuncMap{
		"formatTime":     formatTime,
		"sentimentClass": sentimentClass,
		"join":           strings.Join,
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutTemplate {
			continue
		}

		t, err := template.New(path.Base(layoutTemplate)).Funcs(funcs).ParseFS(templateFS, layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[path.Base(name)] = t
	}

	return &templateRenderer{pages: pages}, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q is not defined", name)
	}

	return t.ExecuteTemplate(w, "layout", data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2 Jan 2006 15:04 UTC")
}

func sentimentClass(s domain.Sentiment) string {
	switch s {
	case domain.SentimentPositive:
		return "positive"
	case domain.SentimentNegative:
		return "negative"
	default:
		return "neutral"
	}
}

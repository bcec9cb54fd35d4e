package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed static
var staticFiles embed.FS

//go:embed templates
var templateFiles embed.FS

// StaticFS is the embedded static file system with the "static/" prefix stripped.
var StaticFS fs.FS

// Templates is the compiled template set for all views.
var Templates *template.Template

// DefaultPicture is served when a user has no profile picture.
const DefaultPicture = "/static/default-profile.svg"

var titleCaser = cases.Title(language.English)

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"title":    Title,
	"date":     Date,
	"fallback": Fallback,
}

// Title upper-cases the first letter of each word: "superadmin" → "Superadmin".
func Title(s string) string {
	return titleCaser.String(s)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"2006-01-02",
}

// Date renders a backend timestamp as a calendar date, or "N/A" when there
// is none. Unrecognised formats are shown verbatim.
func Date(s string) string {
	if s == "" {
		return "N/A"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return s
}

// Fallback returns s, or alt when s is empty.
func Fallback(alt, s string) string {
	if s == "" {
		return alt
	}
	return s
}

func init() {
	var err error

	StaticFS, err = fs.Sub(staticFiles, "static")
	if err != nil {
		slog.Error("web: failed to create static FS", "err", err)
		panic(err)
	}

	Templates, err = template.New("").Funcs(Funcs).ParseFS(templateFiles,
		"templates/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		slog.Error("web: failed to parse templates", "err", err)
		panic(err)
	}
}

package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/idp/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"login":   parsePage("login.html"),
	"consent": parsePage("consent.html"),
	"error":   parsePage("error.html"),
	"device":  parsePage("device.html"),
	"logout":  parsePage("logout.html"),
	"home":    parsePage("home.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+name))
}

type errorPage struct {
	Error       string
	Description string
}

type loginPage struct {
	Action   string
	CSRF     string
	Next     string
	Username string
	OTP      bool
	Error    string
}

type consentPage struct {
	Action     string
	CSRF       string
	Request    string
	ClientName string
	Username   string
	Scopes     []string
	Emails     []string
}

type devicePage struct {
	Action     string
	CSRF       string
	Code       string
	ClientName string
	Error      string
	Done       bool
	Confirmed  bool
}

type logoutPage struct {
	Action     string
	CSRF       string
	ClientName string
	Params     map[string]string
}

type homePage struct {
	Login    string
	Logout   string
	Username string
}

// render writes an HTML page. Pages are never cached.
func render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := pages[page].Execute(w, data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render page", "page", page, "error", err)
	}
}

// renderError shows an error page instead of redirecting, for requests whose
// redirect target cannot be trusted.
func renderError(w http.ResponseWriter, r *http.Request, status int, code, desc string) {
	render(w, r, status, "error", errorPage{Error: code, Description: desc})
}

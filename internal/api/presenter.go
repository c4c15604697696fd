/**
 * @description
 * Page presenters. Every handler builds a Page model and hands it to a Presenter,
 * which renders it either as an HTML document or as a JSON envelope. The HTML
 * portal is mounted at "/" and the JSON page models at "/api".
 */

package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/transfa/portal-service/internal/app"
)

//go:embed templates/*.html
var templateFS embed.FS

const msgLoginRequired = "Please log in to continue."

// Alert is the single message region of a page.
type Alert struct {
	Kind     string   `json:"kind"`
	Messages []string `json:"messages"`
}

func errorAlert(messages ...string) *Alert {
	return &Alert{Kind: "danger", Messages: messages}
}

func successAlert(message string) *Alert {
	return &Alert{Kind: "success", Messages: []string{message}}
}

func warningAlert(message string) *Alert {
	return &Alert{Kind: "warning", Messages: []string{message}}
}

// Page is a rendered view. Name selects the HTML template.
type Page struct {
	Name   string
	Title  string
	Navbar app.Navbar
	Alert  *Alert
	Data   any
}

// Presenter renders pages for one surface of the portal.
type Presenter interface {
	Render(w http.ResponseWriter, r *http.Request, status int, page Page)
	Redirect(w http.ResponseWriter, r *http.Request, to string, data any)
	Unauthorized(w http.ResponseWriter, r *http.Request, loginPath string)
}

var pageTemplates = []string{
	"error", "login", "register", "dashboard", "accounts", "account",
	"new_account", "transfer", "confirm", "success", "profile",
}

var templateFuncs = template.FuncMap{
	"currency": app.FormatCurrency,
	"mask":     app.FormatAccountNumber,
	"date":     app.FormatDate,
	"join":     strings.Join,
	"amount": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
}

// HTMLPresenter renders pages with the embedded templates.
type HTMLPresenter struct {
	templates map[string]*template.Template
}

func NewHTMLPresenter() (*HTMLPresenter, error) {
	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return &HTMLPresenter{templates: templates}, nil
}

func (p *HTMLPresenter) Render(w http.ResponseWriter, r *http.Request, status int, page Page) {
	tmpl, ok := p.templates[page.Name]
	if !ok {
		tmpl = p.templates["error"]
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		log.Printf("level=error component=api msg=\"template render failed\" page=%s err=%v", page.Name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (p *HTMLPresenter) Redirect(w http.ResponseWriter, r *http.Request, to string, _ any) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (p *HTMLPresenter) Unauthorized(w http.ResponseWriter, r *http.Request, loginPath string) {
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

type envelope struct {
	Success  bool        `json:"success"`
	Data     any         `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
	Alert    *Alert      `json:"alert,omitempty"`
	Navbar   *app.Navbar `json:"navbar,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// JSONPresenter renders pages as {success, data, error, redirect} envelopes.
type JSONPresenter struct{}

func (JSONPresenter) Render(w http.ResponseWriter, r *http.Request, status int, page Page) {
	body := envelope{
		Success: status < http.StatusBadRequest,
		Data:    page.Data,
		Alert:   page.Alert,
		Navbar:  &page.Navbar,
	}
	if !body.Success && page.Alert != nil && len(page.Alert.Messages) > 0 {
		body.Error = page.Alert.Messages[0]
		body.Errors = page.Alert.Messages
	}
	writeJSON(w, status, body)
}

func (JSONPresenter) Redirect(w http.ResponseWriter, r *http.Request, to string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Redirect: to})
}

func (JSONPresenter) Unauthorized(w http.ResponseWriter, r *http.Request, loginPath string) {
	message := msgLoginRequired
	if strings.Contains(loginPath, "expired=1") {
		message = app.MsgSessionExpired
	}
	writeJSON(w, http.StatusUnauthorized, envelope{Error: message, Redirect: loginPath})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=warn component=api msg=\"response encode failed\" err=%v", err)
	}
}

package handler

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/flash"
	"github.com/galvanai/portal/internal/form"
	"github.com/galvanai/portal/internal/session"
)

const msgGeneric = "Something went wrong. Try again."

// page is what every template receives. Data holds the page's own view.
type page struct {
	Title    string
	SignedIn bool
	Email    string
	Notice   *flash.Notice
	Data     any
}

type BaseHandler struct {
	templates *template.Template
	flash     flash.Writer
}

func NewBaseHandler(tmpl *template.Template, fw flash.Writer) BaseHandler {
	return BaseHandler{templates: tmpl, flash: fw}
}

// render executes name into a buffer so a template failure can still turn
// into a clean 500. A pending flash notice is shown, and consumed, only when
// p has none of its own.
func (h *BaseHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	s := session.FromContext(r.Context())
	p.SignedIn = s.SignedIn()
	p.Email = s.Email
	if p.Notice == nil {
		if n, ok := h.flash.ReadAndClear(w, r); ok {
			p.Notice = &n
		}
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, p); err != nil {
		slog.Error("render: template error", "template", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect stores notice, if any, and sends the visitor to target.
func (h *BaseHandler) redirect(w http.ResponseWriter, r *http.Request, target string, notice *flash.Notice) {
	if notice != nil {
		h.flash.Write(w, *notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *BaseHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("http: internal error", "method", r.Method, "uri", r.URL.RequestURI(), "err", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func errorNotice(msg string) *flash.Notice {
	n := flash.Error(msg)
	return &n
}

// failureStatus maps a backend failure onto the status of the re-rendered
// page: the backend's own 4xx, otherwise 502.
func failureStatus(err error) int {
	if code := backend.StatusOf(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

// parseUpload bounds the body and parses a multipart form. An oversized body
// is reported as a message, not an error.
func parseUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := r.ParseMultipartForm(limit)
	var maxErr *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, http.ErrNotMultipart):
		return "", nil
	case errors.As(err, &maxErr):
		return form.MsgImageTooLarge, nil
	}
	return "", err
}

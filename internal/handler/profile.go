package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/model"
	"github.com/galvanai/portal/internal/session"
	"github.com/galvanai/portal/internal/web"
)

type profileBackend interface {
	Me(ctx context.Context, token string) (model.User, error)
}

type profilePageData struct {
	User    model.User
	Picture string
}

type ProfileHandler struct {
	BaseHandler
	backend profileBackend
}

func NewProfileHandler(base BaseHandler, b profileBackend) *ProfileHandler {
	return &ProfileHandler{BaseHandler: base, backend: b}
}

// Page shows the signed-in user's own record.
func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	u, err := h.backend.Me(r.Context(), s.Access)
	if err != nil {
		slog.Info("profile: fetch failed", "status", backend.StatusOf(err), "err", err)
		h.redirect(w, r, "/login", errorNotice(backend.MessageOf(err)))
		return
	}

	pic := u.ProfilePic
	if pic == "" {
		pic = web.DefaultPicture
	}
	h.render(w, r, http.StatusOK, "profile.html", page{
		Title: "Profile",
		Data:  profilePageData{User: u, Picture: pic},
	})
}

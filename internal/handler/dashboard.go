package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/galvanai/portal/internal/admin"
	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/flash"
	"github.com/galvanai/portal/internal/form"
	"github.com/galvanai/portal/internal/model"
	"github.com/galvanai/portal/internal/session"
	"github.com/galvanai/portal/internal/web"
)

const (
	msgRoleUnknown  = "Your session has no role, so users cannot be listed. Log in again to continue."
	msgUserCreated  = "User created successfully (OTP skipped for admin)"
	msgUserUpdated  = "User updated"
	msgUserDeleted  = "User deleted"
	msgUserNotFound = "User not found."
)

type usersBackend interface {
	ListUsers(ctx context.Context, token string) ([]model.User, error)
	CreateUser(ctx context.Context, token string, in backend.UserInput) error
	UpdateUser(ctx context.Context, token string, id int64, in backend.UserInput) error
	DeleteUser(ctx context.Context, token string, id int64) error
}

type userRow struct {
	model.User
	Picture string
}

type dashboardPageData struct {
	Role      model.Role
	CanManage bool
	Rows      []userRow
}

type userFormPageData struct {
	Form    form.User
	Picture string
	Action  string
	Roles   []model.Role
}

type confirmDeletePageData struct {
	User model.User
}

// DashboardHandler lists users and, for a superadmin, creates, edits and
// deletes them. The last fetched list is kept in the session.
type DashboardHandler struct {
	BaseHandler
	backend     usersBackend
	sessions    *session.Manager
	pictureBase *url.URL
	maxUpload   int64
}

func NewDashboardHandler(base BaseHandler, b usersBackend, sessions *session.Manager, pictureBase *url.URL, maxUpload int64) *DashboardHandler {
	return &DashboardHandler{BaseHandler: base, backend: b, sessions: sessions, pictureBase: pictureBase, maxUpload: maxUpload}
}

// Dashboard fetches the user list, filters it for the viewer and stores the
// result as the session snapshot.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s.Role == "" {
		slog.Warn("dashboard: skipping user fetch", "err", admin.ErrRoleUnknown, "state", s.State())
		n := flash.Warning(msgRoleUnknown)
		h.renderDashboard(w, r, http.StatusOK, s, &n)
		return
	}

	users, err := h.backend.ListUsers(r.Context(), s.Access)
	if err != nil {
		slog.Info("dashboard: list failed", "role", s.Role, "err", err)
		h.renderDashboard(w, r, failureStatus(err), s, errorNotice(backend.MessageOf(err)))
		return
	}

	s.Users = admin.VisibleTo(s.Role, users)
	if err := h.sessions.Save(r.Context(), s); err != nil {
		slog.Error("dashboard: save snapshot", "err", err)
	}
	h.renderDashboard(w, r, http.StatusOK, s, nil)
}

func (h *DashboardHandler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, s *session.Session, notice *flash.Notice) {
	rows := make([]userRow, 0, len(s.Users))
	for _, u := range s.Users {
		rows = append(rows, userRow{User: u, Picture: h.picture(u.ProfilePic)})
	}
	h.render(w, r, status, "dashboard.html", page{
		Title:  "Admin Dashboard",
		Notice: notice,
		Data: dashboardPageData{
			Role:      s.Role,
			CanManage: admin.CanManage(s.Role),
			Rows:      rows,
		},
	})
}

func (h *DashboardHandler) picture(ref string) string {
	if ref == "" {
		return web.DefaultPicture
	}
	return admin.PictureURL(h.pictureBase, ref)
}

// NewUser renders the user form in create mode.
func (h *DashboardHandler) NewUser(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, form.User{Create: true, Role: model.RoleUser}, nil)
}

// EditUser renders the user form pre-filled from the snapshot row.
func (h *DashboardHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.snapshotRow(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, form.UserFrom(u), nil)
}

func (h *DashboardHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, f form.User, notice *flash.Notice) {
	data := userFormPageData{Form: f, Action: "/admin/users", Roles: model.Roles}
	title := "Create User"
	if !f.Create {
		data.Action = fmt.Sprintf("/admin/users/%d", f.ID)
		title = "Edit User"
	}
	if f.ProfilePic != "" {
		data.Picture = admin.PictureURL(h.pictureBase, f.ProfilePic)
	}
	h.render(w, r, status, "user_form.html", page{Title: title, Notice: notice, Data: data})
}

// CreateUser submits the create form. The backend skips OTP for these.
func (h *DashboardHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, form.User{Create: true})
}

// UpdateUser submits the edit form for the row in the URL.
func (h *DashboardHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.snapshotRow(w, r)
	if !ok {
		return
	}
	h.submit(w, r, form.UserFrom(u))
}

func (h *DashboardHandler) submit(w http.ResponseWriter, r *http.Request, current form.User) {
	tooLarge, err := parseUpload(w, r, h.maxUpload)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	f := form.ParseUser(r, current.Create)
	f.ID = current.ID
	f.ProfilePic = current.ProfilePic
	fail := func(status int, msg string) {
		f.Password = ""
		h.renderForm(w, r, status, f, errorNotice(msg))
	}
	if tooLarge != "" {
		fail(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	if msg := f.Validate(); msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}
	pic, msg, err := form.ReadPicture(r, "profile_pic")
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if msg != "" {
		fail(http.StatusUnprocessableEntity, msg)
		return
	}

	token := session.FromContext(r.Context()).Access
	done := msgUserCreated
	if f.Create {
		err = h.backend.CreateUser(r.Context(), token, f.Input(pic))
	} else {
		err = h.backend.UpdateUser(r.Context(), token, f.ID, f.Input(pic))
		done = msgUserUpdated
	}
	if err != nil {
		slog.Info("dashboard: save user failed", "create", f.Create, "id", f.ID, "err", err)
		fail(failureStatus(err), backend.MessageOf(err))
		return
	}

	n := flash.Success(done)
	h.redirect(w, r, "/admin/dashboard", &n)
}

// DeletePage asks for confirmation.
func (h *DashboardHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	u, ok := h.snapshotRow(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "confirm_delete.html", page{Title: "Delete user?", Data: confirmDeletePageData{User: u}})
}

// Delete removes the user on the backend, then drops that id from the
// snapshot and renders it without fetching the list again.
func (h *DashboardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}

	s := session.FromContext(r.Context())
	if err := h.backend.DeleteUser(r.Context(), s.Access, id); err != nil {
		slog.Info("dashboard: delete failed", "id", id, "err", err)
		h.renderDashboard(w, r, failureStatus(err), s, errorNotice(backend.MessageOf(err)))
		return
	}

	s.Users = admin.Remove(s.Users, id)
	if err := h.sessions.Save(r.Context(), s); err != nil {
		slog.Error("dashboard: save snapshot", "err", err)
	}
	n := flash.Success(msgUserDeleted)
	h.renderDashboard(w, r, http.StatusOK, s, &n)
}

// snapshotRow finds the URL's user in the session snapshot. When it is
// missing the visitor is sent back to the dashboard.
func (h *DashboardHandler) snapshotRow(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return model.User{}, false
	}
	u, ok := admin.Find(session.FromContext(r.Context()).Users, id)
	if !ok {
		h.redirect(w, r, "/admin/dashboard", errorNotice(msgUserNotFound))
		return model.User{}, false
	}
	return u, true
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/crypto"
	"github.com/galvanai/portal/internal/flash"
	"github.com/galvanai/portal/internal/model"
	"github.com/galvanai/portal/internal/session"
	"github.com/galvanai/portal/internal/store"
	"github.com/galvanai/portal/internal/web"
)

type fakeUsers struct {
	listFn   func(ctx context.Context, token string) ([]model.User, error)
	createFn func(ctx context.Context, token string, in backend.UserInput) error
	updateFn func(ctx context.Context, token string, id int64, in backend.UserInput) error
	deleteFn func(ctx context.Context, token string, id int64) error
}

func (f *fakeUsers) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	return f.listFn(ctx, token)
}

func (f *fakeUsers) CreateUser(ctx context.Context, token string, in backend.UserInput) error {
	return f.createFn(ctx, token, in)
}

func (f *fakeUsers) UpdateUser(ctx context.Context, token string, id int64, in backend.UserInput) error {
	return f.updateFn(ctx, token, id, in)
}

func (f *fakeUsers) DeleteUser(ctx context.Context, token string, id int64) error {
	return f.deleteFn(ctx, token, id)
}

type dashboardFixture struct {
	sessions *session.Manager
	router   http.Handler
	cookie   *http.Cookie
}

// newDashboardFixture mounts the dashboard routes and signs in with role.
func newDashboardFixture(t *testing.T, users *fakeUsers, role model.Role) *dashboardFixture {
	t.Helper()
	c, err := crypto.FromSecret(strings.Repeat("d", 32))
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewManager(store.NewMemoryStore(), c, session.Options{TTL: time.Hour})
	base := NewBaseHandler(web.Templates, flash.Writer{})
	pictures, _ := url.Parse("http://backend.test")
	h := NewDashboardHandler(base, users, sessions, pictures, 8<<20)

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.Post("/signin", func(w http.ResponseWriter, r *http.Request) {
		_ = sessions.Set(w, r, backend.Tokens{Access: "tok-" + string(role)}, role, "viewer@example.org")
	})
	r.Get("/admin/dashboard", h.Dashboard)
	r.Post("/admin/users/{id}/delete", h.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signin", nil))
	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			cookie = ck
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie")
	}
	return &dashboardFixture{sessions: sessions, router: r, cookie: cookie}
}

func (f *dashboardFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(f.cookie)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func threeUsers() []model.User {
	return []model.User{
		{ID: 1, FirstName: "U", Email: "u@example.org", Role: model.RoleUser},
		{ID: 2, FirstName: "A", Email: "a@example.org", Role: model.RoleAdmin},
		{ID: 3, FirstName: "S", Email: "s@example.org", Role: model.RoleSuperAdmin, ProfilePic: "/uploads/s.png"},
	}
}

func TestDashboardWithoutRoleMakesNoCall(t *testing.T) {
	users := &fakeUsers{listFn: func(context.Context, string) ([]model.User, error) {
		t.Error("ListUsers called without a role")
		return nil, nil
	}}
	f := newDashboardFixture(t, users, "")

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "notice-warning") {
		t.Error("expected a visible warning")
	}
}

func TestDashboardPassesTokenAndFilters(t *testing.T) {
	var gotToken string
	users := &fakeUsers{listFn: func(_ context.Context, token string) ([]model.User, error) {
		gotToken = token
		return threeUsers(), nil
	}}

	tests := []struct {
		role model.Role
		rows int
	}{
		{model.RoleAdmin, 1},
		{model.RoleSuperAdmin, 3},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			f := newDashboardFixture(t, users, tt.role)
			rec := f.serve(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
			body := rec.Body.String()
			if n := strings.Count(body, "data-user-id="); n != tt.rows {
				t.Errorf("rows = %d, want %d", n, tt.rows)
			}
			if gotToken != "tok-"+string(tt.role) {
				t.Errorf("token = %q", gotToken)
			}
			if tt.role == model.RoleSuperAdmin && !strings.Contains(body, "http://backend.test/uploads/s.png") {
				t.Error("row picture not resolved")
			}
		})
	}
}

func TestDeleteUsesSnapshot(t *testing.T) {
	lists := 0
	var deleted int64
	users := &fakeUsers{
		listFn: func(context.Context, string) ([]model.User, error) {
			lists++
			return threeUsers(), nil
		},
		deleteFn: func(_ context.Context, _ string, id int64) error {
			deleted = id
			return nil
		},
	}
	f := newDashboardFixture(t, users, model.RoleSuperAdmin)
	f.serve(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/users/2/delete", strings.NewReader("confirm=yes"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.serve(req)

	if deleted != 2 {
		t.Errorf("deleted id = %d", deleted)
	}
	if lists != 1 {
		t.Errorf("list fetched %d times, want 1", lists)
	}
	body := rec.Body.String()
	if strings.Contains(body, `data-user-id="2"`) || strings.Count(body, "data-user-id=") != 2 {
		t.Errorf("snapshot not updated: %s", body)
	}

	// The trimmed snapshot is what the session now holds.
	probe := httptest.NewRequest(http.MethodGet, "/", nil)
	probe.AddCookie(f.cookie)
	f.sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := session.FromContext(r.Context()).Users; len(got) != 2 {
			t.Errorf("stored snapshot = %+v", got)
		}
	})).ServeHTTP(httptest.NewRecorder(), probe)
}

func TestDeleteFailureRendersSnapshot(t *testing.T) {
	users := &fakeUsers{
		listFn: func(context.Context, string) ([]model.User, error) { return threeUsers(), nil },
		deleteFn: func(context.Context, string, int64) error {
			return errors.New("dial tcp: connection refused")
		},
	}
	f := newDashboardFixture(t, users, model.RoleSuperAdmin)
	f.serve(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/users/2/delete", strings.NewReader("confirm=yes"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.serve(req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "dial tcp: connection refused") || strings.Count(body, "data-user-id=") != 3 {
		t.Error("failure should keep all rows and show the transport error")
	}
}

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&backend.APIError{StatusCode: 401}, 401},
		{&backend.APIError{StatusCode: 404}, 404},
		{&backend.APIError{StatusCode: 500}, http.StatusBadGateway},
		{errors.New("timeout"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := failureStatus(tt.err); got != tt.want {
			t.Errorf("failureStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

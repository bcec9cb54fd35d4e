// Package admin holds the dashboard's list rules.
package admin

import (
	"errors"
	"net/url"
	"strings"

	"github.com/galvanai/portal/internal/model"
)

// ErrRoleUnknown means the session has no role, so the dashboard cannot
// decide which rows to show. Sessions created by OTP verification are in this
// state until the visitor logs in.
var ErrRoleUnknown = errors.New("admin: session has no role")

// VisibleTo filters users for a viewer. An admin sees only plain users; every
// other role gets the list as fetched.
func VisibleTo(viewer model.Role, users []model.User) []model.User {
	if viewer != model.RoleAdmin {
		return users
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Role == model.RoleUser {
			out = append(out, u)
		}
	}
	return out
}

// CanManage reports whether viewer gets the create, edit and delete controls.
func CanManage(viewer model.Role) bool {
	return viewer == model.RoleSuperAdmin
}

// Remove returns users without the row whose id matches.
func Remove(users []model.User, id int64) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

// Find returns the row with id.
func Find(users []model.User, id int64) (model.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

// PictureURL resolves a stored picture reference for display. Absolute URLs
// are returned as is; backend-relative paths are joined to base.
func PictureURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if base == nil {
		return ref
	}
	return strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(ref, "/")
}

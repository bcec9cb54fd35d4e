// Package auth holds the visitor's position in the sign-in flow and where a
// signed-in visitor lands.
package auth

import "github.com/galvanai/portal/internal/model"

// State is a step of Anonymous → Registering → OtpPending → Authenticated.
type State int

const (
	Anonymous State = iota
	// Registering is the transient state of a register submission in
	// flight. It is never persisted.
	Registering
	OtpPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Registering:
		return "registering"
	case OtpPending:
		return "otp_pending"
	case Authenticated:
		return "authenticated"
	}
	return "anonymous"
}

// StateOf derives the state from what a session holds. An access token wins
// over a pending registration.
func StateOf(access, pendingEmail string) State {
	switch {
	case access != "":
		return Authenticated
	case pendingEmail != "":
		return OtpPending
	}
	return Anonymous
}

// Destination is where a successful login with role lands.
func Destination(role model.Role) string {
	if role.IsStaff() {
		return "/admin/dashboard"
	}
	return "/profile"
}

// Package authz decides which views are reachable for a given session.
package authz

import "github.com/99minutos/orderdesk/internal/core/domain"

// Requirement is the capability a view needs.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	Admin
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Authorize.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

// Authorize applies the navigation rules in order:
//  1. public views are always allowed;
//  2. without a token, go to login;
//  3. admin views need the admin role, otherwise go home;
//  4. allow.
//
// The role comes from an unverified token and only shapes navigation; the
// API enforces the real permissions.
func Authorize(s domain.Session, required Requirement) Decision {
	if required == Public {
		return Allow
	}
	if !s.Authenticated() {
		return RedirectLogin
	}
	if required == Admin && s.Role != domain.RoleAdmin {
		return RedirectHome
	}
	return Allow
}

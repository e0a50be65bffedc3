package domain

import "github.com/golang-jwt/jwt/v5"

// Role is the user_type carried by accounts and tokens.
type Role string

const (
	RoleDefault Role = "default"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a raw user_type to a Role. Unknown non-empty values fall back
// to RoleDefault so that an unexpected value never grants admin.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case "":
		return ""
	default:
		return RoleDefault
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDefault || r == RoleAdmin
}

// Claims is the payload embedded in an access token.
type Claims struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Session is the client-side view of the authenticated user.
//
// Token is empty when logged out. Role is empty when logged out or when the
// token could not be decoded (degraded session).
type Session struct {
	Token string `json:"token,omitempty"`
	Role  Role   `json:"user_type,omitempty"`
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// IsAdmin reports whether the session carries the admin role.
func (s Session) IsAdmin() bool {
	return s.Token != "" && s.Role == RoleAdmin
}

// Degraded reports whether the session holds a token whose role is unknown.
func (s Session) Degraded() bool {
	return s.Token != "" && s.Role == ""
}

// Normalize enforces that a role is only kept alongside a token.
func (s Session) Normalize() Session {
	if s.Token == "" {
		return Session{}
	}
	if s.Role != "" && !s.Role.Valid() {
		s.Role = RoleDefault
	}
	return s
}

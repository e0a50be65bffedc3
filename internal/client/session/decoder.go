// Package session owns the client-side authentication state: decoding access
// tokens, persisting them, and notifying the rest of the client on change.
//
// Tokens are decoded WITHOUT signature verification. The role read from a
// token is a presentation hint only; the API is the authority for every
// authorized operation.
package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claims payload from a three-segment token.
func Decode(token string) (domain.Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.Claims{}, &domain.DecodeError{Reason: "token must have 3 segments"}
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return domain.Claims{}, &domain.DecodeError{Reason: "invalid base64 payload", Err: err}
	}

	var raw tokenPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.Claims{}, &domain.DecodeError{Reason: "invalid json payload", Err: err}
	}
	if len(raw.UserType) == 0 || string(raw.UserType) == "null" {
		return domain.Claims{}, &domain.DecodeError{Reason: "missing user_type claim"}
	}

	var claims domain.Claims
	if err := json.Unmarshal(raw.UserType, &claims.UserType); err != nil {
		return domain.Claims{}, &domain.DecodeError{Reason: "user_type claim is not a string", Err: err}
	}
	if claims.UserType == "" {
		return domain.Claims{}, &domain.DecodeError{Reason: "missing user_type claim"}
	}
	// Everything else is informational; a claim of an unexpected type is
	// left empty.
	_ = json.Unmarshal(raw.UserID, &claims.UserID)
	_ = json.Unmarshal(raw.Username, &claims.Username)
	_ = json.Unmarshal(raw.Subject, &claims.Subject)
	return claims, nil
}

// tokenPayload holds the claims the client reads. Registered claims such as
// exp or aud are not decoded, so their shape never fails a login.
type tokenPayload struct {
	UserType json.RawMessage `json:"user_type"`
	UserID   json.RawMessage `json:"user_id"`
	Username json.RawMessage `json:"username"`
	Subject  json.RawMessage `json:"sub"`
}

// decodeSegment accepts base64url (the JWT form) and falls back to the
// standard alphabet some issuers use.
func decodeSegment(seg string) ([]byte, error) {
	b, err := segmentParser.DecodeSegment(seg)
	if err == nil {
		return b, nil
	}
	if b, stdErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(seg, "=")); stdErr == nil {
		return b, nil
	}
	return nil, err
}

// RoleOf decodes token and returns its role, or "" with the decode error.
func RoleOf(token string) (domain.Role, error) {
	claims, err := Decode(token)
	if err != nil {
		return "", err
	}
	return domain.ParseRole(claims.UserType), nil
}

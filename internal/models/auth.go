package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the capability roles understood by the API.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPERADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleAdviser     UserRole = "ADVISER"
	RolePanelMember UserRole = "PANEL_MEMBER"
	RoleStudent     UserRole = "STUDENT"
	RoleService     UserRole = "SERVICE"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Actor is the identity on whose behalf a core operation runs.
// It is passed explicitly; the core never reads ambient request state.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// SystemActor is used for transitions triggered without a human caller.
var SystemActor = Actor{UserID: "system", Role: RoleService}

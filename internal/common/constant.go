// Package common contains shared constants and sentinel errors used across
// the marketplace server components.
package common

// AuthorizationHeaderName is the HTTP header carrying the access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// Role names stored in user_roles and carried in the token "roles" claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

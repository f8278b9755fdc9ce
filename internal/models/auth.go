package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the JWT payload accepted by the API guard. Tokens are
// issued by the school identity service; this API only validates them.
type AccessClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

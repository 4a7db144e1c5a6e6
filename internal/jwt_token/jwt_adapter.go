package jwttoken

import (
	authmw "docflow/pkg/platform/middleware/auth"
)

// MiddlewareValidator exposes a JWTService as the validator the auth
// middleware consumes. The subject becomes the actor id.
type MiddlewareValidator struct {
	tokens *JWTService
}

func NewJWTServiceAdapter(tokens *JWTService) *MiddlewareValidator {
	return &MiddlewareValidator{tokens: tokens}
}

func (v *MiddlewareValidator) ValidateToken(raw string) (*authmw.JWTClaims, error) {
	claims, err := v.tokens.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{ActorID: claims.Subject, Role: claims.Role, JTI: claims.ID}, nil
}

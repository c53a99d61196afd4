package auth

import "parkinglot/internal/domain"

type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,min=3,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest accepts either the username or the email in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
}

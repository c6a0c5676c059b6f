package auth

import "github.com/alopez/store-backend/internal/users"

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is produced by login and refresh. Only the access token is
// written to the response body; the refresh token travels in a cookie.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         users.UserDTO
}

// TokenResponse is the JSON body for login and refresh.
type TokenResponse struct {
	Token string `json:"token"`
}

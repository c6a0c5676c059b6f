package users

import "github.com/alopez/store-backend/pkg/db/models"

// UserDTO is the public projection of a user; the password hash never leaves the service.
type UserDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func FromModel(u *models.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type UpdateInput struct {
	Name  string
	Email string
}

// Actor identifies the authenticated caller of a user operation.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

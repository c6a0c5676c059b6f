package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/alopez/store-backend/pkg/db"
	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
	"github.com/alopez/store-backend/pkg/logger"
	"github.com/alopez/store-backend/pkg/security"
)

const (
	emailConstraint = "users_email_key"
	// sqlite names the column rather than the index.
	emailColumn     = "users.email"

	msgUserNotFound     = "User not found"
	msgEmailRegistered  = "Email is already registered."
	msgUserUnauthorized = "User not authorized"
)

// Service manages user accounts.
type Service interface {
	ListUsers(ctx context.Context, sort string) ([]UserDTO, error)
	GetUser(ctx context.Context, id int64) (*UserDTO, error)
	RegisterUser(ctx context.Context, input RegisterInput) (*UserDTO, error)
	UpdateUser(ctx context.Context, id int64, input UpdateInput) (*UserDTO, error)
	DeleteUser(ctx context.Context, id int64) error
	ChangePassword(ctx context.Context, actor Actor, id int64, oldPassword, newPassword string) error
}

type repository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, sort string) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, name, email string) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type ServiceParams struct {
	Repo   repository
	Hasher security.PasswordHasher
	Logger *logger.Logger
}

type service struct {
	repo   repository
	hasher security.PasswordHasher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	return &service{repo: params.Repo, hasher: params.Hasher, logg: params.Logger}, nil
}

func (s *service) ListUsers(ctx context.Context, sort string) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx, sort)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) GetUser(ctx context.Context, id int64) (*UserDTO, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) RegisterUser(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	email := normalizeEmail(input.Email)
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hash,
		Role:     enums.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if isEmailTaken(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgEmailRegistered)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID), "user.registered")
	}
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) UpdateUser(ctx context.Context, id int64, input UpdateInput) (*UserDTO, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(input.Email)
	if email != user.Email {
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
	}

	user.Name = strings.TrimSpace(input.Name)
	user.Email = email
	if err := s.repo.UpdateProfile(ctx, id, user.Name, user.Email); err != nil {
		if isEmailTaken(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgEmailRegistered)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) DeleteUser(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "User has existing orders")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgUserNotFound)
	}
	return nil
}

// ChangePassword lets a user, or an admin, replace a password after verifying the old one.
func (s *service) ChangePassword(ctx context.Context, actor Actor, id int64, oldPassword, newPassword string) error {
	if actor.UserID != id && !actor.IsAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "You can only change your own password.")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(oldPassword, user.Password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msgUserUnauthorized)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, id), "user.password_changed")
	}
	return nil
}

func (s *service) load(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgUserNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func (s *service) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return pkgerrors.New(pkgerrors.CodeValidation, msgEmailRegistered)
	case err != nil && !db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup email")
	}
	return nil
}

func isEmailTaken(err error) bool {
	return db.IsUniqueViolation(err, emailConstraint) || db.IsUniqueViolation(err, emailColumn)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

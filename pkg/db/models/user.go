package models

import "github.com/alopez/store-backend/pkg/enums"

// User is a registered customer or administrator.
type User struct {
	ID       int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string     `gorm:"column:name;type:varchar(255);not null"`
	Email    string     `gorm:"column:email;type:varchar(255);not null;uniqueIndex:users_email_key"`
	Password string     `gorm:"column:password;type:varchar(255);not null"`
	Role     enums.Role `gorm:"column:role;type:varchar(20);not null;default:'USER'"`
}

// IsAdmin reports whether the user carries the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == enums.RoleAdmin
}

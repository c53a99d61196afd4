package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:80;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"size:200;not null"`
	IsAdmin      bool      `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Role is the role name carried in access tokens.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

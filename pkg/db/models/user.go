package models

import "time"

// User is a row of the users table. PasswordHash is only populated by the
// username lookup used for credential checks.
type User struct {
	UserID       int64      `gorm:"column:user_id;primaryKey;autoIncrement"`
	EmployeeID   *int64     `gorm:"column:employee_id"`
	Username     string     `gorm:"column:username;type:text;not null;uniqueIndex:users_username_key"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Email        *string    `gorm:"column:email;type:text;uniqueIndex:users_email_key"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

package users

import (
	"time"

	"github.com/angelmondragon/user-directory/pkg/db/models"
	"github.com/angelmondragon/user-directory/pkg/types"
)

// UserDTO is the transport shape. It has no credential field, so no
// serialization path can leak a password hash.
type UserDTO struct {
	UserID      int64      `json:"userId"`
	EmployeeID  *int64     `json:"employeeId"`
	Username    string     `json:"username"`
	Email       *string    `json:"email"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CredentialsDTO is the full record returned only by the username lookup.
type CredentialsDTO struct {
	UserDTO
	PasswordHash string `json:"-"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	PasswordHash string
	Email        *string
	EmployeeID   *int64
	IsActive     *bool
}

// CreateUserInput is the service-level create request.
type CreateUserInput struct {
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	Email      *string `json:"email"`
	EmployeeID *int64  `json:"employeeId"`
	IsActive   *bool   `json:"isActive"`
}

// UpdateUserInput is the caller-supplied patch. Only Email, IsActive and
// EmployeeID are applied; the credential fields are accepted and dropped.
type UpdateUserInput struct {
	Email        types.Nullable[string] `json:"email"`
	IsActive     types.Nullable[bool]   `json:"isActive"`
	EmployeeID   types.Nullable[int64]  `json:"employeeId"`
	Username     *string                `json:"username"`
	Password     *string                `json:"password"`
	PasswordHash *string                `json:"passwordHash"`
}

// HasAllowedFields reports whether any mutable attribute was supplied.
func (in UpdateUserInput) HasAllowedFields() bool {
	return in.Email.Valid || in.IsActive.Valid || in.EmployeeID.Valid
}

// Page is one window of users plus its pagination metadata.
type Page struct {
	Users       []UserDTO
	CurrentPage int
	Limit       int
	TotalPages  int
	TotalUsers  int64
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		UserID:      u.UserID,
		EmployeeID:  cloneInt64(u.EmployeeID),
		Username:    u.Username,
		Email:       cloneString(u.Email),
		IsActive:    u.IsActive,
		LastLoginAt: cloneTime(u.LastLoginAt),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func credentialsFromModel(u *models.User) *CredentialsDTO {
	if u == nil {
		return nil
	}
	return &CredentialsDTO{UserDTO: *FromModel(u), PasswordHash: u.PasswordHash}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

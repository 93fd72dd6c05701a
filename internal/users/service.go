package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/user-directory/pkg/db"
	pkgerrors "github.com/angelmondragon/user-directory/pkg/errors"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"github.com/angelmondragon/user-directory/pkg/pagination"
	"github.com/angelmondragon/user-directory/pkg/security"
	"github.com/angelmondragon/user-directory/pkg/types"
)

type usersRepository interface {
	Create(ctx context.Context, dto CreateUserDTO) (*UserDTO, error)
	FindByID(ctx context.Context, id int64) (*UserDTO, error)
	FindByUsername(ctx context.Context, username string) (*CredentialsDTO, error)
	FindByEmail(ctx context.Context, email string) (*UserDTO, error)
	ListPage(ctx context.Context, params pagination.Params) ([]UserDTO, int64, error)
	Update(ctx context.Context, id int64, fields UpdateFields) (*UserDTO, error)
	SoftDelete(ctx context.Context, id int64) (*UserDTO, error)
}

// PasswordHasher computes the stored credential for a plaintext password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service exposes user directory operations.
type Service interface {
	CreateUser(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	GetUserByID(ctx context.Context, id int64) (*UserDTO, error)
	GetUserByUsername(ctx context.Context, username string) (*CredentialsDTO, error)
	ListUsers(ctx context.Context, params pagination.Params) (*Page, error)
	UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (*UserDTO, error)
	DeleteUser(ctx context.Context, id int64) (*UserDTO, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) (*UserDTO, error)
}

type service struct {
	repo   usersRepository
	hasher PasswordHasher
	logg   *logger.Logger
}

// NewService builds a users service with the provided repository and hasher.
func NewService(repo usersRepository, hasher PasswordHasher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	return &service{repo: repo, hasher: hasher, logg: logg}, nil
}

func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Username and password are required.")
	}
	if len(input.Password) > security.MaxPasswordBytes {
		return nil, passwordTooLong()
	}
	if input.EmployeeID != nil && *input.EmployeeID <= 0 {
		return nil, invalidEmployeeID()
	}
	email := normalizeEmail(input.Email)

	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, usernameTaken(username)
	}

	if email != nil {
		byEmail, err := s.repo.FindByEmail(ctx, *email)
		if err != nil {
			return nil, err
		}
		if byEmail != nil {
			return nil, emailTaken(*email)
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, passwordTooLong().Message())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	created, err := s.repo.Create(ctx, CreateUserDTO{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		EmployeeID:   input.EmployeeID,
		IsActive:     input.IsActive,
	})
	if err != nil {
		var ce *db.ConstraintError
		if !errors.As(err, &ce) {
			return nil, err
		}
		s.warn(ctx, "users.create.conflict", ce)
		switch ce.Column {
		case "username":
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, usernameTaken(username).Message())
		case "email":
			if email != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, emailTaken(*email).Message())
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "User creation failed due to duplicate information.")
	}
	return created, nil
}

func (s *service) GetUserByID(ctx context.Context, id int64) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "User with ID %d not found.", id)
	}
	return user, nil
}

func (s *service) GetUserByUsername(ctx context.Context, username string) (*CredentialsDTO, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "User with username '%s' not found.", username)
	}
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, params pagination.Params) (*Page, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListPage(ctx, params)
	if err != nil {
		return nil, err
	}

	list := make([]UserDTO, 0, len(rows))
	list = append(list, rows...)

	meta := pagination.BuildMeta(params, total)
	return &Page{
		Users:       list,
		CurrentPage: meta.CurrentPage,
		Limit:       meta.Limit,
		TotalPages:  meta.TotalPages,
		TotalUsers:  meta.Total,
	}, nil
}

func (s *service) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (*UserDTO, error) {
	fields := UpdateFields{
		EmployeeID: input.EmployeeID.Clone(),
		IsActive:   input.IsActive.Clone(),
	}
	if v := input.EmployeeID.Value; v != nil && *v <= 0 {
		return nil, invalidEmployeeID()
	}
	if input.IsActive.IsNull() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "isActive must be true or false.").
			WithDetails(map[string]any{"field": "isActive"})
	}
	if input.Email.Valid {
		if email := normalizeEmail(input.Email.Value); email != nil {
			fields.Email = types.Set(*email)
		} else {
			fields.Email = types.Null[string]()
		}
	}

	if fields.IsEmpty() {
		user, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, notFoundForUpdate(id)
		}
		return user, nil
	}

	if fields.Email.Value != nil {
		owner, err := s.repo.FindByEmail(ctx, *fields.Email.Value)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.UserID != id {
			return nil, emailInUse(*fields.Email.Value)
		}
	}

	updated, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		var ce *db.ConstraintError
		if !errors.As(err, &ce) {
			return nil, err
		}
		s.warn(ctx, "users.update.conflict", ce)
		// email is the only unique column this path can write
		if fields.Email.Value != nil && db.IsUniqueViolation(err, "email") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, emailInUse(*fields.Email.Value).Message())
		}
		return nil, pkgerrors.Classify(err)
	}
	if updated == nil {
		return nil, notFoundForUpdate(id)
	}
	return updated, nil
}

func (s *service) DeleteUser(ctx context.Context, id int64) (*UserDTO, error) {
	deleted, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "User with ID %d not found for deletion.", id)
	}
	return deleted, nil
}

// RecordLogin stamps last_login_at for the credential flow. It bypasses the
// update allow-list, which never exposes this column to API callers.
func (s *service) RecordLogin(ctx context.Context, id int64, at time.Time) (*UserDTO, error) {
	updated, err := s.repo.Update(ctx, id, UpdateFields{LastLoginAt: types.Set(at.UTC())})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, notFoundForUpdate(id)
	}
	return updated, nil
}

func (s *service) warn(ctx context.Context, msg string, ce *db.ConstraintError) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"column":     ce.Column,
		"constraint": ce.Constraint,
	})
	s.logg.Warn(ctx, msg)
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func usernameTaken(username string) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Username '%s' already exists.", username)
}

func emailTaken(email string) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Email '%s' already exists.", email)
}

func emailInUse(email string) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Email '%s' is already associated with another user.", email)
}

func passwordTooLong() *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "Password must be at most %d bytes.", security.MaxPasswordBytes).
		WithDetails(map[string]any{"field": "password"})
}

func invalidEmployeeID() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "employeeId must be a positive integer.").
		WithDetails(map[string]any{"field": "employeeId"})
}

func notFoundForUpdate(id int64) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "User with ID %d not found for update.", id)
}

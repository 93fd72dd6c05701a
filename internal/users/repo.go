package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/user-directory/internal/repo"
	"github.com/angelmondragon/user-directory/pkg/db"
	"github.com/angelmondragon/user-directory/pkg/db/models"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"github.com/angelmondragon/user-directory/pkg/pagination"
	"github.com/angelmondragon/user-directory/pkg/types"
)

const (
	userColumns       = "user_id, employee_id, username, email, is_active, last_login_at, created_at, updated_at"
	credentialColumns = userColumns + ", password_hash"
)

// Repository exposes user-related persistence operations. Every read except
// FindByUsername selects without password_hash.
type Repository struct {
	base repo.Base
	logg *logger.Logger
}

// NewRepository constructs a users repo bound to the provided gateway.
func NewRepository(gw db.Gateway, logg *logger.Logger) *Repository {
	return &Repository{base: repo.NewBase(gw), logg: logg}
}

// Create inserts a new user. Unique violations are returned as *db.ConstraintError.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*UserDTO, error) {
	isActive := true
	if dto.IsActive != nil {
		isActive = *dto.IsActive
	}

	var row models.User
	res := r.base.Raw(ctx,
		"INSERT INTO users (employee_id, username, password_hash, email, is_active) VALUES (?, ?, ?, ?, ?) RETURNING "+userColumns,
		optionalValue(dto.EmployeeID), dto.Username, dto.PasswordHash, optionalValue(dto.Email), isActive,
	).Scan(&row)
	if res.Error != nil {
		if ce, ok := db.UniqueViolation(res.Error); ok {
			return nil, ce
		}
		return nil, fmt.Errorf("insert user: %w", res.Error)
	}

	r.debug(ctx, row.UserID, "users.repo.created")
	return FromModel(&row), nil
}

// FindByID returns nil, nil when no row matches.
func (r *Repository) FindByID(ctx context.Context, id int64) (*UserDTO, error) {
	row, err := r.findOne(ctx, userColumns, "user_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if row == nil {
		r.debug(ctx, id, "users.repo.not_found")
		return nil, nil
	}
	return FromModel(row), nil
}

// FindByUsername returns the full record, password hash included.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*CredentialsDTO, error) {
	row, err := r.findOne(ctx, credentialColumns, "username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return credentialsFromModel(row), nil
}

// FindByEmail skips the query entirely for a blank email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*UserDTO, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	row, err := r.findOne(ctx, userColumns, "email = ?", email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return FromModel(row), nil
}

// ListPage returns one page ordered newest first plus the unfiltered total.
func (r *Repository) ListPage(ctx context.Context, params pagination.Params) ([]UserDTO, int64, error) {
	params = params.Normalize()

	var rows []models.User
	if err := r.base.Raw(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, user_id DESC LIMIT ? OFFSET ?",
		params.Limit, params.Offset,
	).Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int64
	if err := r.base.Raw(ctx, "SELECT COUNT(*) FROM users").Scan(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}

// Update writes only the supplied fields. An empty patch issues no UPDATE and
// behaves like FindByID. Returns nil, nil when the id does not exist.
func (r *Repository) Update(ctx context.Context, id int64, fields UpdateFields) (*UserDTO, error) {
	sets := fields.assignments()
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	query, args := buildUpdate(id, sets)

	var row models.User
	res := r.base.Raw(ctx, query, args...).Scan(&row)
	if res.Error != nil {
		if ce, ok := db.UniqueViolation(res.Error); ok {
			return nil, ce
		}
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.debug(ctx, id, "users.repo.not_found")
		return nil, nil
	}

	r.debug(ctx, id, "users.repo.updated")
	return FromModel(&row), nil
}

// SoftDelete marks the user inactive.
func (r *Repository) SoftDelete(ctx context.Context, id int64) (*UserDTO, error) {
	return r.Update(ctx, id, UpdateFields{IsActive: types.Set(false)})
}

func (r *Repository) findOne(ctx context.Context, columns, where string, arg any) (*models.User, error) {
	var row models.User
	res := r.base.Raw(ctx, "SELECT "+columns+" FROM users WHERE "+where+" LIMIT 1", arg).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *Repository) debug(ctx context.Context, id int64, msg string) {
	if r.logg == nil {
		return
	}
	r.logg.Debug(r.logg.WithUserID(ctx, id), msg)
}

func optionalValue[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

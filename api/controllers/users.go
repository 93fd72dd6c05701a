package controllers

import (
	"net/http"

	"github.com/angelmondragon/user-directory/api/responses"
	"github.com/angelmondragon/user-directory/api/validators"
	"github.com/angelmondragon/user-directory/internal/users"
	pkgerrors "github.com/angelmondragon/user-directory/pkg/errors"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"github.com/angelmondragon/user-directory/pkg/pagination"
	"github.com/angelmondragon/user-directory/pkg/types"
)

const invalidUserID = "Invalid user ID format."

// maxPage keeps (page-1)*limit well inside int range.
const maxPage = 1 << 24

type userEnvelope struct {
	User *users.UserDTO `json:"user"`
}

type usersEnvelope struct {
	Users []users.UserDTO `json:"users"`
}

type createUserRequest struct {
	Username   string  `json:"username" validate:"max=255"`
	Password   string  `json:"password"`
	Email      *string `json:"email" validate:"omitempty,max=255"`
	EmployeeID *int64  `json:"employeeId" validate:"omitempty,gt=0"`
	IsActive   *bool   `json:"isActive"`
}

func (r createUserRequest) toInput() users.CreateUserInput {
	return users.CreateUserInput{
		Username:   r.Username,
		Password:   r.Password,
		Email:      r.Email,
		EmployeeID: r.EmployeeID,
		IsActive:   r.IsActive,
	}
}

// UserCreate registers a new directory user.
func UserCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var req createUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.CreateUser(r.Context(), req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteEnvelope(w, http.StatusCreated, types.SuccessEnvelope{
			Message: "User created successfully.",
			Data:    userEnvelope{User: user},
		})
	}
}

// UserList returns one page of users, newest first.
func UserList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, maxPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListUsers(r.Context(), pagination.FromPage(page, limit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results := len(result.Users)
		responses.WriteEnvelope(w, http.StatusOK, types.SuccessEnvelope{
			Message: "Users fetched successfully.",
			Results: &results,
			Pagination: &types.PaginationMeta{
				CurrentPage: result.CurrentPage,
				Limit:       result.Limit,
				TotalPages:  result.TotalPages,
				TotalUsers:  result.TotalUsers,
			},
			Data: usersEnvelope{Users: result.Users},
		})
	}
}

// UserGet returns a single user by id.
func UserGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "id", invalidUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetUserByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteEnvelope(w, http.StatusOK, types.SuccessEnvelope{
			Message: "User fetched successfully.",
			Data:    userEnvelope{User: user},
		})
	}
}

// UserUpdate applies a partial update limited to email, isActive and employeeId.
func UserUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "id", invalidUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input users.UpdateUserInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !input.HasAllowedFields() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "No valid fields provided for update."))
			return
		}

		user, err := svc.UpdateUser(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteEnvelope(w, http.StatusOK, types.SuccessEnvelope{
			Message: "User updated successfully.",
			Data:    userEnvelope{User: user},
		})
	}
}

// UserDelete soft-deletes a user and responds with 204.
func UserDelete(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "id", invalidUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.DeleteUser(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

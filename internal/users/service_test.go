package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/user-directory/pkg/db"
	pkgerrors "github.com/angelmondragon/user-directory/pkg/errors"
	"github.com/angelmondragon/user-directory/pkg/pagination"
	"github.com/angelmondragon/user-directory/pkg/security"
	"github.com/angelmondragon/user-directory/pkg/types"
)

type stubUsersRepo struct {
	byUsername *CredentialsDTO
	byEmail    *UserDTO
	byID       *UserDTO
	created    *UserDTO
	updated    *UserDTO
	rows       []UserDTO
	total      int64

	createErr error
	updateErr error
	findErr   error

	createCalls  []CreateUserDTO
	updateCalls  []UpdateFields
	findByIDs    []int64
	listParams   []pagination.Params
	emailLookups []string
}

func (s *stubUsersRepo) Create(ctx context.Context, dto CreateUserDTO) (*UserDTO, error) {
	s.createCalls = append(s.createCalls, dto)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id int64) (*UserDTO, error) {
	s.findByIDs = append(s.findByIDs, id)
	return s.byID, s.findErr
}

func (s *stubUsersRepo) FindByUsername(ctx context.Context, username string) (*CredentialsDTO, error) {
	return s.byUsername, s.findErr
}

func (s *stubUsersRepo) FindByEmail(ctx context.Context, email string) (*UserDTO, error) {
	s.emailLookups = append(s.emailLookups, email)
	return s.byEmail, s.findErr
}

func (s *stubUsersRepo) ListPage(ctx context.Context, params pagination.Params) ([]UserDTO, int64, error) {
	s.listParams = append(s.listParams, params)
	return s.rows, s.total, s.findErr
}

func (s *stubUsersRepo) Update(ctx context.Context, id int64, fields UpdateFields) (*UserDTO, error) {
	s.updateCalls = append(s.updateCalls, fields)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.updated, nil
}

func (s *stubUsersRepo) SoftDelete(ctx context.Context, id int64) (*UserDTO, error) {
	return s.Update(ctx, id, UpdateFields{IsActive: types.Set(false)})
}

type stubHasher struct {
	err   error
	calls int
}

func (h *stubHasher) Hash(password string) (string, error) {
	h.calls++
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

func newTestService(t *testing.T, repo *stubUsersRepo, hasher *stubHasher) Service {
	t.Helper()
	svc, err := NewService(repo, hasher, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sampleUser(id int64) *UserDTO {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	email := "alice@example.com"
	return &UserDTO{UserID: id, Username: "alice", Email: &email, IsActive: true, CreatedAt: now, UpdatedAt: now}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return typed
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil, &stubHasher{}, nil); err == nil {
		t.Fatal("expected error creating service without repo")
	}
}

func TestNewServiceRequiresHasher(t *testing.T) {
	if _, err := NewService(&stubUsersRepo{}, nil, nil); err == nil {
		t.Fatal("expected error creating service without hasher")
	}
}

func TestCreateUserRequiresCredentials(t *testing.T) {
	repo := &stubUsersRepo{}
	svc := newTestService(t, repo, &stubHasher{})

	for _, in := range []CreateUserInput{
		{Username: "", Password: "secret"},
		{Username: "   ", Password: "secret"},
		{Username: "alice", Password: ""},
	} {
		_, err := svc.CreateUser(context.Background(), in)
		typed := assertCode(t, err, pkgerrors.CodeValidation)
		if typed.Message() != "Username and password are required." {
			t.Fatalf("unexpected message %q", typed.Message())
		}
	}
	if len(repo.createCalls) != 0 {
		t.Fatal("repo should not be called for invalid input")
	}
}

func TestCreateUserRejectsExistingUsername(t *testing.T) {
	repo := &stubUsersRepo{byUsername: &CredentialsDTO{UserDTO: *sampleUser(1)}}
	hasher := &stubHasher{}
	svc := newTestService(t, repo, hasher)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "alice", Password: "secret"})
	typed := assertCode(t, err, pkgerrors.CodeConflict)
	if typed.Message() != "Username 'alice' already exists." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if hasher.calls != 0 {
		t.Fatal("password should not be hashed on conflict")
	}
}

func TestCreateUserRejectsExistingEmail(t *testing.T) {
	repo := &stubUsersRepo{byEmail: sampleUser(2)}
	svc := newTestService(t, repo, &stubHasher{})

	email := "alice@example.com"
	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "bob", Password: "secret", Email: &email})
	typed := assertCode(t, err, pkgerrors.CodeConflict)
	if typed.Message() != "Email 'alice@example.com' already exists." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestCreateUserHashesAndNormalizes(t *testing.T) {
	repo := &stubUsersRepo{created: sampleUser(3)}
	hasher := &stubHasher{}
	svc := newTestService(t, repo, hasher)

	blank := "  "
	user, err := svc.CreateUser(context.Background(), CreateUserInput{Username: " carol ", Password: "pw", Email: &blank})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.UserID != 3 {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(repo.createCalls) != 1 {
		t.Fatalf("expected one create call, got %d", len(repo.createCalls))
	}
	call := repo.createCalls[0]
	if call.Username != "carol" {
		t.Fatalf("expected trimmed username, got %q", call.Username)
	}
	if call.PasswordHash != "hashed:pw" {
		t.Fatalf("expected hashed password, got %q", call.PasswordHash)
	}
	if call.Email != nil {
		t.Fatalf("blank email should be stored as NULL, got %q", *call.Email)
	}
	if len(repo.emailLookups) != 0 {
		t.Fatal("blank email should not be looked up")
	}
}

func TestCreateUserHashFailure(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{}, &stubHasher{err: errors.New("cost")})
	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "a", Password: "b"})
	assertCode(t, err, pkgerrors.CodeInternal)
}

func TestCreateUserRejectsPasswordOverByteLimit(t *testing.T) {
	repo := &stubUsersRepo{}
	hasher := &stubHasher{}
	svc := newTestService(t, repo, hasher)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "bob", Password: strings.Repeat("é", 40)})
	typed := assertCode(t, err, pkgerrors.CodeValidation)
	if typed.Message() != "Password must be at most 72 bytes." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if hasher.calls != 0 || len(repo.createCalls) != 0 {
		t.Fatal("oversized password must not reach the hasher or repo")
	}
}

func TestCreateUserMapsHasherLengthError(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{}, &stubHasher{err: security.ErrPasswordTooLong})

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "bob", Password: "pw"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateUserRejectsNonPositiveEmployeeID(t *testing.T) {
	repo := &stubUsersRepo{}
	svc := newTestService(t, repo, &stubHasher{})

	employeeID := int64(-3)
	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "bob", Password: "pw", EmployeeID: &employeeID})
	assertCode(t, err, pkgerrors.CodeValidation)
	if len(repo.createCalls) != 0 {
		t.Fatal("repo should not be called")
	}
}

func TestCreateUserMapsRaceConflicts(t *testing.T) {
	email := "race@example.com"
	cases := []struct {
		column string
		msg    string
	}{
		{"username", "Username 'dave' already exists."},
		{"email", "Email 'race@example.com' already exists."},
		{"", "User creation failed due to duplicate information."},
	}
	for _, tc := range cases {
		repo := &stubUsersRepo{createErr: &db.ConstraintError{Column: tc.column, Err: db.ErrUniqueViolation}}
		svc := newTestService(t, repo, &stubHasher{})

		_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "dave", Password: "pw", Email: &email})
		typed := assertCode(t, err, pkgerrors.CodeConflict)
		if typed.Message() != tc.msg {
			t.Fatalf("column %q: unexpected message %q", tc.column, typed.Message())
		}
	}
}

func TestCreateUserPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := newTestService(t, &stubUsersRepo{createErr: boom}, &stubHasher{})

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "a", Password: "b"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected raw storage error, got %v", err)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{}, &stubHasher{})
	_, err := svc.GetUserByID(context.Background(), 42)
	typed := assertCode(t, err, pkgerrors.CodeNotFound)
	if typed.Message() != "User with ID 42 not found." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestGetUserByUsernameReturnsCredentials(t *testing.T) {
	repo := &stubUsersRepo{byUsername: &CredentialsDTO{UserDTO: *sampleUser(1), PasswordHash: "h"}}
	svc := newTestService(t, repo, &stubHasher{})

	creds, err := svc.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if creds.PasswordHash != "h" {
		t.Fatalf("expected hash, got %q", creds.PasswordHash)
	}

	repo.byUsername = nil
	_, err = svc.GetUserByUsername(context.Background(), "ghost")
	typed := assertCode(t, err, pkgerrors.CodeNotFound)
	if typed.Message() != "User with username 'ghost' not found." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestListUsersBuildsPage(t *testing.T) {
	repo := &stubUsersRepo{rows: []UserDTO{*sampleUser(5), *sampleUser(4)}, total: 25}
	svc := newTestService(t, repo, &stubHasher{})

	page, err := svc.ListUsers(context.Background(), pagination.FromPage(2, 10))
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.CurrentPage != 2 || page.Limit != 10 || page.TotalPages != 3 || page.TotalUsers != 25 {
		t.Fatalf("unexpected page meta %+v", page)
	}
	if len(page.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(page.Users))
	}
	if repo.listParams[0].Offset != 10 {
		t.Fatalf("expected offset 10, got %d", repo.listParams[0].Offset)
	}
}

func TestListUsersEmptyDirectory(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{}, &stubHasher{})

	page, err := svc.ListUsers(context.Background(), pagination.Params{})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.Users == nil || len(page.Users) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", page.Users)
	}
	if page.TotalPages != 0 || page.TotalUsers != 0 {
		t.Fatalf("unexpected meta %+v", page)
	}
}

func TestUpdateUserRejectsNullIsActive(t *testing.T) {
	repo := &stubUsersRepo{}
	svc := newTestService(t, repo, &stubHasher{})

	_, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{IsActive: types.Null[bool]()})
	assertCode(t, err, pkgerrors.CodeValidation)
	if len(repo.updateCalls) != 0 {
		t.Fatal("repo should not be updated")
	}
}

func TestUpdateUserRejectsNonPositiveEmployeeID(t *testing.T) {
	for _, id := range []int64{0, -7} {
		repo := &stubUsersRepo{byID: sampleUser(1)}
		svc := newTestService(t, repo, &stubHasher{})

		_, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{EmployeeID: types.Set(id)})
		typed := assertCode(t, err, pkgerrors.CodeValidation)
		if typed.Message() != "employeeId must be a positive integer." {
			t.Fatalf("unexpected message %q", typed.Message())
		}
		if len(repo.updateCalls) != 0 {
			t.Fatalf("employeeId %d: repo should not be updated", id)
		}
	}
}

func TestUpdateUserClearsEmployeeID(t *testing.T) {
	repo := &stubUsersRepo{updated: sampleUser(1)}
	svc := newTestService(t, repo, &stubHasher{})

	if _, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{EmployeeID: types.Null[int64]()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.updateCalls) != 1 || !repo.updateCalls[0].EmployeeID.IsNull() {
		t.Fatalf("expected explicit null employeeId, got %+v", repo.updateCalls)
	}
}

func TestUpdateUserEmptyPatchReturnsCurrent(t *testing.T) {
	repo := &stubUsersRepo{byID: sampleUser(1)}
	svc := newTestService(t, repo, &stubHasher{})

	pw := "new-password"
	user, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{Password: &pw})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if user.UserID != 1 {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(repo.updateCalls) != 0 {
		t.Fatal("empty patch should not issue an update")
	}

	repo.byID = nil
	_, err = svc.UpdateUser(context.Background(), 7, UpdateUserInput{})
	typed := assertCode(t, err, pkgerrors.CodeNotFound)
	if typed.Message() != "User with ID 7 not found for update." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestUpdateUserEmailOwnedByAnotherUser(t *testing.T) {
	repo := &stubUsersRepo{byEmail: sampleUser(9)}
	svc := newTestService(t, repo, &stubHasher{})

	_, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{Email: types.Set("alice@example.com")})
	typed := assertCode(t, err, pkgerrors.CodeConflict)
	if typed.Message() != "Email 'alice@example.com' is already associated with another user." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestUpdateUserEmailOwnedBySelf(t *testing.T) {
	repo := &stubUsersRepo{byEmail: sampleUser(1), updated: sampleUser(1)}
	svc := newTestService(t, repo, &stubHasher{})

	if _, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{Email: types.Set("alice@example.com")}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if len(repo.updateCalls) != 1 {
		t.Fatalf("expected one update call, got %d", len(repo.updateCalls))
	}
}

func TestUpdateUserAppliesAllowListOnly(t *testing.T) {
	repo := &stubUsersRepo{updated: sampleUser(1)}
	svc := newTestService(t, repo, &stubHasher{})

	name := "mallory"
	hash := "$2a$10$forged"
	_, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{
		IsActive:     types.Set(false),
		EmployeeID:   types.Null[int64](),
		Email:        types.Set("   "),
		Username:     &name,
		PasswordHash: &hash,
	})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	fields := repo.updateCalls[0]
	if !fields.IsActive.Valid || *fields.IsActive.Value {
		t.Fatalf("expected isActive=false, got %+v", fields.IsActive)
	}
	if !fields.EmployeeID.IsNull() {
		t.Fatal("expected employeeId to be cleared")
	}
	if !fields.Email.IsNull() {
		t.Fatal("blank email should clear the column")
	}
	if fields.LastLoginAt.Valid {
		t.Fatal("lastLoginAt is not caller-writable")
	}
	if len(repo.emailLookups) != 0 {
		t.Fatal("cleared email should not be looked up")
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	svc := newTestService(t, &stubUsersRepo{}, &stubHasher{})
	_, err := svc.UpdateUser(context.Background(), 3, UpdateUserInput{IsActive: types.Set(true)})
	typed := assertCode(t, err, pkgerrors.CodeNotFound)
	if typed.Message() != "User with ID 3 not found for update." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestUpdateUserRaceConflict(t *testing.T) {
	repo := &stubUsersRepo{updateErr: &db.ConstraintError{Column: "email", Err: db.ErrUniqueViolation}}
	svc := newTestService(t, repo, &stubHasher{})

	_, err := svc.UpdateUser(context.Background(), 1, UpdateUserInput{Email: types.Set("x@example.com")})
	typed := assertCode(t, err, pkgerrors.CodeConflict)
	if typed.Message() != "Email 'x@example.com' is already associated with another user." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestDeleteUser(t *testing.T) {
	deleted := sampleUser(4)
	deleted.IsActive = false
	repo := &stubUsersRepo{updated: deleted}
	svc := newTestService(t, repo, &stubHasher{})

	user, err := svc.DeleteUser(context.Background(), 4)
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if user.IsActive {
		t.Fatal("expected user to be inactive")
	}

	repo.updated = nil
	_, err = svc.DeleteUser(context.Background(), 4)
	typed := assertCode(t, err, pkgerrors.CodeNotFound)
	if typed.Message() != "User with ID 4 not found for deletion." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestRecordLoginStampsUTC(t *testing.T) {
	repo := &stubUsersRepo{updated: sampleUser(1)}
	svc := newTestService(t, repo, &stubHasher{})

	at := time.Date(2025, 6, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	if _, err := svc.RecordLogin(context.Background(), 1, at); err != nil {
		t.Fatalf("record login: %v", err)
	}
	got := repo.updateCalls[0].LastLoginAt
	if !got.Valid || got.Value.Location() != time.UTC || !got.Value.Equal(at) {
		t.Fatalf("unexpected last login %+v", got)
	}
}

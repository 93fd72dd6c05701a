package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/user-directory/pkg/types"
)

// UpdateFields is the repository-level patch. A field with Valid=false is
// left untouched; Valid with a nil Value writes NULL.
type UpdateFields struct {
	EmployeeID  types.Nullable[int64]
	Email       types.Nullable[string]
	IsActive    types.Nullable[bool]
	LastLoginAt types.Nullable[time.Time]
}

// IsEmpty reports whether no column would be written.
func (f UpdateFields) IsEmpty() bool {
	return len(f.assignments()) == 0
}

type assignment struct {
	column string
	value  any
}

func (f UpdateFields) assignments() []assignment {
	var out []assignment
	if f.EmployeeID.Valid {
		out = append(out, assignment{column: "employee_id", value: nullableValue(f.EmployeeID)})
	}
	if f.Email.Valid {
		out = append(out, assignment{column: "email", value: nullableValue(f.Email)})
	}
	if f.IsActive.Valid {
		out = append(out, assignment{column: "is_active", value: nullableValue(f.IsActive)})
	}
	if f.LastLoginAt.Valid {
		out = append(out, assignment{column: "last_login_at", value: nullableValue(f.LastLoginAt)})
	}
	return out
}

func nullableValue[T any](n types.Nullable[T]) any {
	if n.Value == nil {
		return nil
	}
	return *n.Value
}

// buildUpdate renders the UPDATE for the supplied assignments. updated_at is
// always refreshed.
func buildUpdate(id int64, sets []assignment) (string, []any) {
	clauses := make([]string, 0, len(sets)+1)
	args := make([]any, 0, len(sets)+1)
	for _, set := range sets {
		clauses = append(clauses, set.column+" = ?")
		args = append(args, set.value)
	}
	clauses = append(clauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := "UPDATE users SET " + strings.Join(clauses, ", ") +
		" WHERE user_id = ? RETURNING " + userColumns
	return query, args
}

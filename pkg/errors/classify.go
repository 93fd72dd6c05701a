package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/user-directory/pkg/db"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Classify normalizes any failure into the domain taxonomy. Typed errors pass
// through untouched; storage and token failures get a stable code and a
// message that carries no driver internals.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}

	if ce, ok := db.UniqueViolation(err); ok {
		return duplicateField(ce, err)
	}

	switch code := db.SQLState(err); {
	case code == db.PGForeignKeyViolation:
		return Wrap(CodeValidation, err, "A related record was not found.").
			WithDetails(pgDetails(err))
	case strings.HasPrefix(code, db.PGDataExceptionClass),
		code == db.PGCheckViolation,
		code == db.PGNotNullViolation:
		return Wrap(CodeValidation, err, "Invalid input data.").
			WithDetails(pgDetails(err))
	}

	switch {
	case stdErrors.Is(err, jwt.ErrTokenExpired):
		return Wrap(CodeTokenExpired, err, MetadataFor(CodeTokenExpired).PublicMessage)
	case isTokenError(err):
		return Wrap(CodeUnauthorized, err, MetadataFor(CodeUnauthorized).PublicMessage)
	}

	var maxBytes *http.MaxBytesError
	if stdErrors.As(err, &maxBytes) {
		return Wrap(CodePayloadTooLarge, err, "Request body is too large.").
			WithDetails(map[string]any{"limit": maxBytes.Limit})
	}

	if db.IsStorageFailure(err) {
		return Wrap(CodeStorage, err, MetadataFor(CodeStorage).PublicMessage)
	}
	return Wrap(CodeInternal, err, MetadataFor(CodeInternal).PublicMessage)
}

func duplicateField(ce *db.ConstraintError, err error) *Error {
	if ce.Column == "" {
		return Wrap(CodeConflict, err, MetadataFor(CodeConflict).PublicMessage)
	}
	field := fieldName(ce.Column)
	if ce.Value == "" {
		return Wrap(CodeConflict, err, fmt.Sprintf("Duplicate %s value. Please use another value!", field)).
			WithDetails(map[string]any{"field": field})
	}
	msg := fmt.Sprintf("Duplicate %s value: \"%s\". Please use another value!", field, ce.Value)
	return Wrap(CodeConflict, err, msg).
		WithDetails(map[string]any{"field": field, "value": ce.Value})
}

// fieldName maps a column to its JSON attribute name.
func fieldName(column string) string {
	parts := strings.Split(strings.ToLower(column), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func isTokenError(err error) bool {
	for _, sentinel := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenInvalidClaims,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if stdErrors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func pgDetails(err error) map[string]any {
	details := map[string]any{}
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		setIf(details, "field", fieldNameOrEmpty(pgxErr.ColumnName))
	case stdErrors.As(err, &pqErr):
		setIf(details, "field", fieldNameOrEmpty(pqErr.Column))
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func fieldNameOrEmpty(column string) string {
	if column == "" {
		return ""
	}
	return fieldName(column)
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/user-directory/pkg/errors"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"github.com/angelmondragon/user-directory/pkg/types"
)

type debugKey struct{}

// WithDebug marks the request as eligible for verbose error payloads.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, debugKey{}, enabled)
}

func debugEnabled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	enabled, _ := ctx.Value(debugKey{}).(bool)
	return enabled
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	WriteEnvelope(w, status, types.SuccessEnvelope{Data: data})
}

// WriteEnvelope writes a fully populated success envelope.
func WriteEnvelope(w http.ResponseWriter, status int, env types.SuccessEnvelope) {
	if env.Status == "" {
		env.Status = types.StatusSuccess
	}
	writeJSON(w, status, env)
}

// WriteJSON writes payload without the success envelope.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError classifies err, logs the full dump and writes the error envelope.
// 5xx responses carry only the generic public message unless debug is enabled
// on the request context.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.Classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())
	debug := debugEnabled(ctx)

	msg := meta.PublicMessage
	if typed.Operational() || debug {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	status := types.StatusError
	if typed.Operational() {
		status = types.StatusFail
	}

	payload := types.ErrorEnvelope{
		Status: status,
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed || debug {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	dump := pkgerrors.Dump(err)
	if debug {
		payload.Error.Stack = strings.Join(dump.Chain, "\n")
		payload.Error.Debug = dump
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, dump.Fields())
		if typed.Operational() {
			logg.Warn(ctx, "request.error")
		} else {
			logg.Error(ctx, "request.error", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}

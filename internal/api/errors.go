package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-ops/internal/domain"
)

var kindStatus = map[string]int{
	"not_found":           http.StatusNotFound,
	"slot_unavailable":    http.StatusConflict,
	"invalid_transition":  http.StatusConflict,
	"invalid_state":       http.StatusConflict,
	"insufficient_stock":  http.StatusConflict,
	"duplicate_record":    http.StatusConflict,
	"busy":                http.StatusConflict,
	"validation_error":    http.StatusUnprocessableEntity,
	"invalid_quantity":    http.StatusUnprocessableEntity,
	"no_schedule_for_day": http.StatusUnprocessableEntity,
	"forbidden":           http.StatusForbidden,
}

// writeDomainError maps an error kind onto its HTTP status. Errors of no
// known kind are logged and reported as 500 without details.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/machiavelli/internal/logger"
	"github.com/freeeve/machiavelli/internal/service"
	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorStatus maps service and engine errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *machiavelli.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInGame),
		errors.Is(err, service.ErrNotCreator),
		errors.Is(err, machiavelli.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyProcessing),
		errors.Is(err, service.ErrGameNotWaiting),
		errors.Is(err, service.ErrGameNotActive),
		errors.Is(err, service.ErrGameFull),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrCountryTaken),
		errors.Is(err, service.ErrNoActivePhase),
		errors.Is(err, service.ErrPlayerDone),
		errors.Is(err, machiavelli.ErrWrongPhase),
		errors.Is(err, machiavelli.ErrGameFinished):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidOptions),
		errors.Is(err, service.ErrInvalidCountry),
		errors.Is(err, service.ErrNotEnough),
		errors.Is(err, machiavelli.ErrUnknownArea),
		errors.Is(err, machiavelli.ErrUnknownUnit),
		errors.Is(err, machiavelli.ErrUnknownPlayer),
		errors.Is(err, machiavelli.ErrInsufficientDucats),
		errors.Is(err, machiavelli.ErrNotAllowed),
		errors.Is(err, machiavelli.ErrRuleDisabled),
		errors.Is(err, machiavelli.ErrWrongUnitCount):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status errorStatus picks. Internal
// errors are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		l := logger.ForRequest(r.Context())
		l.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// intParam reads an integer path value.
func intParam(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil
}

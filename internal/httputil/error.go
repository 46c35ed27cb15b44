package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/tourney-bot/internal/service"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteError(w, http.StatusBadRequest, msg)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteError(w, http.StatusNotFound, msg)
}

// StatusFor maps a service error to the HTTP status a client should see.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrMatchNotFound),
		errors.Is(err, service.ErrNotRegistered),
		errors.Is(err, service.ErrNoRegistrationInProgress):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrNicknameTaken),
		errors.Is(err, service.ErrCharacterTaken),
		errors.Is(err, service.ErrNoCharactersAvailable),
		errors.Is(err, service.ErrInsufficientParticipants),
		errors.Is(err, service.ErrTournamentAlreadyStarted),
		errors.Is(err, service.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSelection),
		errors.Is(err, service.ErrInvalidWinner),
		errors.Is(err, service.ErrInvalidNickname),
		errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ServiceError writes err with its mapped status. Expected outcomes such as a
// lost resolution race are not logged as failures.
func ServiceError(w http.ResponseWriter, msg string, err error) {
	status := StatusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		InternalServerError(w, msg, err)
		return
	case status == http.StatusServiceUnavailable:
		slog.Error(msg, "error", err)
		WriteError(w, status, "storage unavailable, try again later")
		return
	case status == http.StatusNotFound:
		NotFound(w, err.Error(), err)
		return
	case errors.Is(err, service.ErrAlreadyResolved):
		slog.Info(msg, "error", err)
	default:
		slog.Warn(msg, "error", err)
	}
	WriteError(w, status, err.Error())
}
